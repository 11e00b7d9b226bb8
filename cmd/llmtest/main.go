// Command llmtest sends one sample conversation through the configured
// external classifier and prints the verdict. Useful for checking model
// credentials and prompt behavior.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/chatrisk/internal/app/bootstrap"
	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/scoring"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

var sample = []transcript.RawMessage{
	{Time: "14:40", Sender: "User", Content: "你好，我买的耳机左边没声音"},
	{Time: "14:41", Sender: "Service", Content: "亲，您好"},
	{Time: "14:41", Sender: "User", Content: "能换一个吗"},
	{Time: "14:42", Sender: "Service", Content: "这个你自己去问快递，跟我们没关系"},
	{Time: "14:43", Sender: "User", Content: "什么态度，我要投诉"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	cfg.Classifier = scoring.KindLLM
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+10*time.Second)
	defer cancel()

	classifier, err := bootstrap.BuildClassifier(ctx, cfg, bootstrap.NewAWSLoader(cfg), nil, logger)
	if err != nil {
		log.Fatalf("build classifier: %v", err)
	}

	fmt.Printf("provider=%s\n", cfg.LLMProvider)
	start := time.Now()
	v, err := classifier.Classify(ctx, "llmtest", transcript.Normalize(sample))
	if err != nil {
		fmt.Printf("classification failed after %v: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}
	fmt.Printf("classified in %v\n", time.Since(start).Round(time.Millisecond))

	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
