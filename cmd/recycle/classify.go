package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/prediction"
	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/recycle"
	"github.com/recycle-ai/recycle/internal/redact"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Classify a photo and show disposal guidance",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().Bool("json", false, "print the result as JSON")
}

var (
	labelColor   = color.New(color.Bold)
	headingColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow)
	badgeColors  = map[string]*color.Color{
		"green":  color.New(color.FgGreen, color.Bold),
		"red":    color.New(color.FgRed, color.Bold),
		"yellow": color.New(color.FgYellow, color.Bold),
		"gray":   color.New(color.FgHiBlack, color.Bold),
	}
)

// setColorMode applies --color. auto keeps the terminal detection done by
// the color package.
func setColorMode(mode string) error {
	switch mode {
	case "auto":
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color %q: want auto, always or never", mode)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	loader := a.loadModel()
	defer func() {
		if err := loader.Close(); err != nil {
			redact.Logf("close model: %v", err)
		}
	}()

	analyzer := recycle.NewAnalyzer(loader, a.guidance, a.activation)
	res, err := analyzer.Analyze(ctx, "", data)
	if res == nil {
		return errors.New(userFacing(err))
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	out := cmd.OutOrStdout()
	printPredictions(out, res.Predictions)
	fmt.Fprintln(out)
	if err != nil {
		warnColor.Fprintf(out, "Guidance unavailable: %s\n", userFacing(err))
		return nil
	}
	printGuidance(out, res.Guidance)
	if c := quiz.CategoryFromLabel(res.Guidance.Category); a.bank.Has(c) {
		fmt.Fprintf(out, "\nTest yourself: recycle quiz %q\n", c)
	}
	return nil
}

func printPredictions(w io.Writer, entries []prediction.Entry) {
	headingColor.Fprintln(w, "Predictions")
	for _, e := range prediction.SortByProbability(entries) {
		fmt.Fprintf(w, "  %-14s %6s%%\n", e.Label, e.Percent())
	}
}

func printGuidance(w io.Writer, g *guidance.Result) {
	d := g.Recyclable.Display()
	badge, ok := badgeColors[d.Color]
	if !ok {
		badge = badgeColors["gray"]
	}
	labelColor.Fprint(w, g.Category+" ")
	badge.Fprintf(w, "[%s]\n", d.Status)
	if g.Instructions != "" {
		fmt.Fprintf(w, "\n%s\n  %s\n", headingColor.Sprint("How to dispose"), g.Instructions)
	}
	if g.Tip != "" {
		fmt.Fprintf(w, "\n%s\n  %s\n", headingColor.Sprint("Tip"), g.Tip)
	}
	if g.Impact != "" {
		fmt.Fprintf(w, "\n%s\n  %s\n", headingColor.Sprint("Impact"), g.Impact)
	}
}

type userMessager interface {
	UserMessage() string
}

func userFacing(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
