package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	trends "github.com/anatolykoptev/go-twitter-trends"
	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

var hashtagsCmd = &cobra.Command{
	Use:   "hashtags [file]",
	Short: "Rank hashtags and sentiment of tweet texts, one per line",
	Long:  "hashtags reads tweet texts from a file or stdin, one per line, and prints the top hashtags, their mean sentiment and the sentiment tally without calling the API.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHashtags,
}

func init() {
	hashtagsCmd.Flags().IntVar(&flagHashtagLimit, "limit", 10, "number of hashtags to print")
	hashtagsCmd.Flags().StringVar(&flagTopic, "topic", "stdin", "topic label for the output")
}

var (
	flagHashtagLimit int
	flagTopic        string
)

type hashtagsOutput struct {
	TopHashtags      []trends.HashtagCount `json:"top_hashtags"`
	HashtagSentiment map[string]float64    `json:"hashtag_sentiment"`
	Sentiment        trends.SentimentView  `json:"sentiment"`
}

func runHashtags(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	res, err := aggregateLines(in, flagTopic, sentiment.Default(), flagHashtagLimit, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(newHashtagsOutput(res))
}

// newHashtagsOutput keeps the mean sentiment only for the ranked hashtags.
func newHashtagsOutput(res *trends.AggregationResult) hashtagsOutput {
	out := hashtagsOutput{
		TopHashtags:      res.TrendsView(0).Hashtags,
		HashtagSentiment: make(map[string]float64, len(res.TopHashtags)),
		Sentiment:        res.SentimentView(),
	}
	for _, tc := range res.TopHashtags {
		out.HashtagSentiment[tc.Term] = res.HashtagSentiment[tc.Term]
	}
	return out
}

// aggregateLines treats every non-blank line of r as one tweet text.
func aggregateLines(r io.Reader, topic string, scorer sentiment.Scorer, topN int, now time.Time) (*trends.AggregationResult, error) {
	agg := trends.NewAggregator(topic, "", scorer, sentiment.DefaultThreshold)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		n++
		agg.Add(trends.TweetRecord{ID: fmt.Sprintf("line-%d", n), Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return agg.Result(now, topN), nil
}
