package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/quiz"
)

var quizCmd = &cobra.Command{
	Use:   "quiz <category>",
	Short: "Take a short quiz about a waste category",
	Long: `quiz draws random questions from the category's bank. Answer each one with
the option number; the score is shown once all answers are in.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuiz,
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard [category]",
	Short: "Show the best quiz results",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLeaderboard,
}

func init() {
	quizCmd.Flags().Int64("seed", 0, "shuffle seed for a reproducible question set (0 picks a random one)")
	leaderboardCmd.Flags().Int("limit", 0, "number of results (defaults to quiz.leaderboard_size)")
}

var (
	correctColor = color.New(color.FgGreen)
	wrongColor   = color.New(color.FgRed)
)

func runQuiz(cmd *cobra.Command, args []string) error {
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

	opts := []quiz.Option{quiz.WithSize(cfg.Quiz.QuestionsPerQuiz)}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		opts = append(opts, quiz.WithShuffler(quiz.NewSeededShuffler(seed)))
	}
	sess := quiz.NewSession(a.bank, quiz.CategoryFromLabel(args[0]), opts...)
	if sess.State() == quiz.StateInvalidCategory {
		return fmt.Errorf("invalid category %q (choose one of: %s)", args[0], strings.Join(a.bank.Categories(), ", "))
	}

	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	headingColor.Fprintf(out, "%s quiz\n", capitalize(sess.Category()))

	for i, q := range sess.Questions() {
		if err := askQuestion(out, in, sess, i, q); err != nil {
			return err
		}
	}

	score, err := sess.Submit()
	if err != nil {
		return err
	}
	printReview(out, sess.Review())

	userID, name := "", ""
	if u, ok := a.session.Current(); ok {
		userID, name = string(u.ID), u.DisplayName()
	}
	result := quiz.NewResult(userID, name, sess.Category(), score, sess.Total(), time.Now())
	fmt.Fprintf(out, "\nYou scored %d/%d (%d%%)\n", score, sess.Total(), result.Percentage)

	if userID != "" {
		if err := a.leaderboard.Record(ctx, result); err != nil {
			warnColor.Fprintf(out, "Your result could not be saved: %v\n", err)
		}
	} else {
		fmt.Fprintln(out, "Sign in with `recycle login` to keep your results on the leaderboard.")
	}

	a.activation.Record(ctx, activation.BuildParams{
		Kind:   activation.KindQuizSubmitted,
		UserID: userID,
		Quiz: &activation.QuizPayload{
			Category:   result.Category,
			Score:      result.Score,
			Total:      result.Total,
			Percentage: result.Percentage,
		},
	})
	return nil
}

func askQuestion(out io.Writer, in *bufio.Scanner, sess *quiz.Session, i int, q quiz.Question) error {
	fmt.Fprintf(out, "\n%d. %s\n", i+1, q.Question)
	for j, opt := range q.Options {
		fmt.Fprintf(out, "   %d) %s\n", j+1, opt)
	}
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return err
			}
			// Input ended; the rest stay unanswered.
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err != nil || n < 1 || n > len(q.Options) {
			fmt.Fprintf(out, "Enter a number from 1 to %d\n", len(q.Options))
			continue
		}
		return sess.SelectAnswer(i, q.Options[n-1])
	}
}

func printReview(out io.Writer, review []quiz.QuestionReview) {
	fmt.Fprintln(out)
	headingColor.Fprintln(out, "Review")
	for _, r := range review {
		fmt.Fprintf(out, "%d. %s\n", r.Index+1, r.Question)
		for _, opt := range r.Options {
			switch opt.State {
			case quiz.OptionCorrect:
				correctColor.Fprintf(out, "   ✓ %s\n", opt.Text)
			case quiz.OptionWrong:
				wrongColor.Fprintf(out, "   ✗ %s\n", opt.Text)
			default:
				fmt.Fprintf(out, "     %s\n", opt.Text)
			}
		}
	}
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	category := ""
	if len(args) == 1 {
		category = quiz.CategoryFromLabel(args[0])
		if !a.bank.Has(category) {
			return fmt.Errorf("invalid category %q (choose one of: %s)", args[0], strings.Join(a.bank.Categories(), ", "))
		}
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Quiz.LeaderboardSize
	}

	results, err := a.leaderboard.Top(cmd.Context(), category, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results yet.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%2d. %-20s %-10s %d/%d (%d%%)  %s\n",
			i+1, r.Name, r.Category, r.Score, r.Total, r.Percentage, r.Date.Local().Format("2006-01-02"))
	}
	return nil
}

// capitalize upper-cases the first letter of s, which may be multi-byte.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
