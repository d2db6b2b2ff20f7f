// Command classify labels a local fruit image without starting the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"fruitfresh/internal/app"
	"fruitfresh/internal/config"
	"fruitfresh/internal/fruit"
	"fruitfresh/internal/logging"
	"fruitfresh/internal/nutrition"
	"fruitfresh/internal/vision"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "configs/config.toml", "path to the TOML config")
	imagePath := fs.String("image", "", "JPEG or PNG image to classify")
	offline := fs.Bool("offline", false, "skip the nutrition lookup")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *imagePath == "" {
		fmt.Fprintln(stderr, "classify: -image is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "classify: %v\n", err)
		return 1
	}
	logger, err := logging.NewLogger("cli")
	if err != nil {
		fmt.Fprintf(stderr, "classify: %v\n", err)
		return 1
	}
	logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		fmt.Fprintf(stderr, "classify: read image: %v\n", err)
		return 1
	}

	preprocessor, err := vision.NewPreprocessor(cfg.Model.ResizeFilter)
	if err != nil {
		fmt.Fprintf(stderr, "classify: %v\n", err)
		return 1
	}
	models := vision.NewONNXLoader(cfg.Model.Path, fruit.NumLabels, vision.ModelOptions{
		SharedLibPath:  cfg.Model.ONNXSharedLibPath,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}, logger)
	defer func() { _ = models.Close() }()

	var info app.InfoLookup
	if !*offline {
		info = nutrition.NewClient(cfg.Nutrition.BaseURL, cfg.NutritionTimeout(), logger)
	}

	svc := app.NewClassificationService(models, preprocessor, info, nil, logger)
	result, err := svc.Classify(ctx, app.Upload{Filename: filepath.Base(*imagePath), Data: data})
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrModelFileNotFound):
			fmt.Fprintf(stderr, "classify: model weights not found at %s\n", cfg.Model.Path)
		case errors.Is(err, vision.ErrUnsupportedInput):
			fmt.Fprintf(stderr, "classify: %s is not a JPEG or PNG image\n", *imagePath)
		default:
			fmt.Fprintf(stderr, "classify: %v\n", err)
		}
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "classify: %v\n", err)
			return 1
		}
		return 0
	}
	printResult(stdout, result, *offline)
	return 0
}

func printResult(w io.Writer, r *app.ClassificationResult, offline bool) {
	fmt.Fprintf(w, "Prediction: %s\n", r.Label)
	fmt.Fprintf(w, "Freshness:  %s\n", r.Freshness)
	fmt.Fprintf(w, "Guidance:   %s\n", r.Guidance)
	switch {
	case offline:
	case r.Info == nil:
		fmt.Fprintf(w, "Nutrition:  no information available for %s\n", r.Fruit)
	default:
		n := r.Info.Nutritions
		fmt.Fprintf(w, "Fruit:      %s (family %s, order %s, genus %s)\n", r.Info.Name, r.Info.Family, r.Info.Order, r.Info.Genus)
		fmt.Fprintf(w, "Nutrition:  calories %.1f, fat %.1f g, sugar %.1f g, carbohydrates %.1f g, protein %.1f g\n",
			n.Calories, n.Fat, n.Sugar, n.Carbohydrates, n.Protein)
	}
}
