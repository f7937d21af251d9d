package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

func printRecords(w io.Writer, records []model.ActionRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no actions")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RAN AT\tTRIGGER\tRULE\tACTION\tCONCLUSION\tTITLE")
	for _, rec := range records {
		rule := rec.RuleName
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			rec.RanAt.Local().Format(time.DateTime), rec.Trigger, rule, rec.Action,
			rec.Result.Conclusion.Emoji(), rec.Result.Conclusion, rec.Result.Title)
	}
	return tw.Flush()
}

func printResult(w io.Writer, res model.Result) error {
	_, err := fmt.Fprintf(w, "%s %s\n", res.Conclusion.Emoji(), res.Title)
	if err == nil && res.Summary != "" {
		_, err = fmt.Fprintf(w, "\n%s\n", res.Summary)
	}
	return err
}

// printCredentials lists bot logins. Token values are never printed.
func printCredentials(w io.Writer, creds []model.Credential) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tUPDATED AT")
	for _, c := range creds {
		login, ok := c.BotLogin()
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", login, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func printQueue(w io.Writer, pulls []int) error {
	if len(pulls) == 0 {
		_, err := fmt.Fprintln(w, "queue is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POSITION\tPULL REQUEST")
	for i, n := range pulls {
		fmt.Fprintf(tw, "%d\t#%d\n", i+1, n)
	}
	return tw.Flush()
}

// plainHandler writes bare messages, one per line, for terminal output of
// the config dump.
type plainHandler struct {
	w io.Writer
}

func newPlainHandler(w io.Writer) *plainHandler {
	return &plainHandler{w: w}
}

func (h *plainHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *plainHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(h.w, r.Message)
	return err
}

func (h *plainHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *plainHandler) WithGroup(string) slog.Handler { return h }
