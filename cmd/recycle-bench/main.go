package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/recycle-ai/recycle/internal/classifier"
	"github.com/recycle-ai/recycle/internal/config"
	"github.com/recycle-ai/recycle/internal/prediction"
)

func main() {
	cfgPath := flag.String("config", "recycle.yaml", "path to config yaml")
	n := flag.Int("n", 200, "number of iterations")
	imagePath := flag.String("image", "", "image to classify (required)")
	flag.Parse()

	if *imagePath == "" {
		log.Fatalf("image flag is required")
	}
	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	loadStart := time.Now()
	model, err := classifier.LoadModel(cfg.Model.Dir, classifier.Options{
		ModelFile:         cfg.Model.ModelFile,
		MetadataFile:      cfg.Model.MetadataFile,
		SharedLibraryPath: cfg.Model.SharedLibraryPath,
		InputName:         cfg.Model.InputName,
		OutputName:        cfg.Model.OutputName,
		IntraOpThreads:    cfg.Model.IntraOpThreads,
	})
	if err != nil {
		log.Fatalf("load model: %v", err)
	}
	defer model.Close()
	loadTime := time.Since(loadStart)

	ctx := context.Background()

	// Warmup
	var entries []prediction.Entry
	for i := 0; i < 5; i++ {
		if entries, err = model.Predict(ctx, data); err != nil {
			log.Fatalf("warmup predict failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if _, err := model.Predict(ctx, data); err != nil {
			log.Fatalf("predict failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	top, err := prediction.ResolveTop(entries)
	if err != nil {
		log.Fatalf("resolve top: %v", err)
	}

	fmt.Printf("bench: n=%d load_ms=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f labels=%d top=%s(%s%%) model_dir=%s\n",
		len(durations),
		loadTime.Milliseconds(),
		avg,
		p50,
		p95,
		len(model.Labels()),
		top.Label,
		top.Percent(),
		cfg.Model.Dir,
	)
}
