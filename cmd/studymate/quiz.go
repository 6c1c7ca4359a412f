package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvcrn/studymate-cli/internal/api"
	"github.com/dvcrn/studymate-cli/internal/app"
)

func (c *cli) quizCmd(ctx context.Context, args []string) error {
	return c.dispatch(ctx, "quiz", args, map[string]command{
		"generate": c.quizGenerateCmd,
		"list": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("quiz list")
			asJSON := fs.Bool("json", false, "output JSON")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				quizzes, err := a.Client.ListQuizzes(ctx)
				if err != nil {
					return err
				}
				if *asJSON {
					return c.printJSON(quizzes)
				}
				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tDIFFICULTY\tQUESTIONS\tMINUTES")
				for _, q := range quizzes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", q.ID, q.Title, q.Difficulty, q.NumQuestions, q.TimeLimitMinutes)
				}
				return tw.Flush()
			})
		},
		"show": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("quiz show")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "quiz id")
				if err != nil {
					return err
				}
				quiz, err := a.Client.GetQuiz(ctx, id)
				if err != nil {
					return err
				}
				c.printQuiz(quiz)
				return nil
			})
		},
		"take":     c.quizTakeCmd,
		"attempts": c.quizAttemptsCmd,
		"delete": func(ctx context.Context, args []string) error {
			fs, configPath := c.flags("quiz delete")
			return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
				id, err := requireArg(fs.Args(), "quiz id")
				if err != nil {
					return err
				}
				if err := a.Client.DeleteQuiz(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, "Quiz deleted")
				return nil
			})
		},
	})
}

func (c *cli) quizGenerateCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("quiz generate")
	docs := fs.String("docs", "", "comma separated document ids")
	n := fs.Int("n", 10, "number of questions (1-50)")
	minutes := fs.Int("minutes", 15, "time limit in minutes (1-180)")
	difficulty := fs.String("difficulty", "medium", "easy, medium or hard")
	title := fs.String("title", "", "quiz title")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		quiz, err := a.Client.GenerateQuizStream(ctx, api.GenerateQuizRequest{
			DocumentIDs:      splitList(*docs),
			NumQuestions:     *n,
			TimeLimitMinutes: *minutes,
			Difficulty:       *difficulty,
			Title:            *title,
		}, c.progress)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Created quiz %s: %s (%d questions)\n", quiz.ID, quiz.Title, len(quiz.Questions))
		return nil
	})
}

// quizTakeCmd runs an attempt interactively, one question per prompt.
func (c *cli) quizTakeCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("quiz take")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		id, err := requireArg(fs.Args(), "quiz id")
		if err != nil {
			return err
		}
		quiz, err := a.Client.GetQuiz(ctx, id)
		if err != nil {
			return err
		}
		attempt, err := a.Client.StartAttempt(ctx, quiz.ID)
		if err != nil {
			return err
		}

		started := time.Now()
		fmt.Fprintf(c.stdout, "%s: %d questions, %d minutes\n\n", quiz.Title, len(quiz.Questions), quiz.TimeLimitMinutes)
		for _, q := range quiz.Questions {
			fmt.Fprintf(c.stdout, "%d. %s\n", q.QuestionNumber, q.QuestionText)
			for i, opt := range q.Options {
				fmt.Fprintf(c.stdout, "   %d) %s\n", i+1, opt)
			}

			asked := time.Now()
			line, err := c.readLine("Answer (q to abandon): ")
			if err != nil || strings.EqualFold(strings.TrimSpace(line), "q") {
				if abandonErr := a.Client.AbandonAttempt(ctx, attempt.ID); abandonErr != nil {
					return abandonErr
				}
				fmt.Fprintln(c.stdout, "Attempt abandoned")
				return nil
			}
			choice := atoiDefault(line, 0) - 1
			if choice < 0 || choice >= len(q.Options) {
				fmt.Fprintln(c.stdout, "   skipped")
				continue
			}

			ans, err := a.Client.SubmitAnswer(ctx, attempt.ID, q.ID, choice, int(time.Since(asked).Seconds()))
			if err != nil {
				return err
			}
			if ans.IsCorrect != nil {
				if *ans.IsCorrect {
					fmt.Fprintln(c.stdout, "   correct")
				} else {
					fmt.Fprintln(c.stdout, "   incorrect")
				}
			}
		}

		result, err := a.Client.CompleteAttempt(ctx, attempt.ID, int(time.Since(started).Seconds()))
		if err != nil {
			return err
		}
		c.printAttempt(result)
		return nil
	})
}

func (c *cli) quizAttemptsCmd(ctx context.Context, args []string) error {
	fs, configPath := c.flags("quiz attempts")
	return c.withApp(ctx, fs, configPath, args, func(a *app.App) error {
		id, err := requireArg(fs.Args(), "quiz id")
		if err != nil {
			return err
		}
		attempts, err := a.Client.QuizAttempts(ctx, id)
		if err != nil {
			return err
		}
		for i := range attempts {
			c.printAttempt(&attempts[i])
		}
		return nil
	})
}

func (c *cli) printQuiz(q *api.Quiz) {
	fmt.Fprintf(c.stdout, "%s (%s, %d minutes)\n", q.Title, q.Difficulty, q.TimeLimitMinutes)
	for _, question := range q.Questions {
		fmt.Fprintf(c.stdout, "\n%d. %s\n", question.QuestionNumber, question.QuestionText)
		for i, opt := range question.Options {
			mark := " "
			if question.CorrectAnswer != nil && *question.CorrectAnswer == i {
				mark = "*"
			}
			fmt.Fprintf(c.stdout, "  %s%d) %s\n", mark, i+1, opt)
		}
	}
}

func (c *cli) printAttempt(a *api.QuizAttempt) {
	switch {
	case a.Score != nil && a.PercentageScore != nil:
		fmt.Fprintf(c.stdout, "Attempt %s: %s, score %d/%d (%.0f%%)\n", a.ID, a.Status, *a.Score, a.TotalQuestions, *a.PercentageScore)
	case a.Score != nil:
		fmt.Fprintf(c.stdout, "Attempt %s: %s, score %d/%d\n", a.ID, a.Status, *a.Score, a.TotalQuestions)
	default:
		fmt.Fprintf(c.stdout, "Attempt %s: %s\n", a.ID, a.Status)
	}
}
