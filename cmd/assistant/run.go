package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/lighthuangfu/agent-study/internal/assistant"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Run one request in the terminal",
	Long: `Runs the workflow once, streaming generated text to the terminal. When a
document draft is ready you are asked for rewrite instructions; an empty line,
"done" or "完成" finishes and prints the rendered report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		session, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = a.Close(closeCtx)
		}()

		render := markdownRenderer(plain)
		input := ""
		if len(args) > 0 {
			input = args[0]
		}
		return runSession(ctx, a.service, session, input, cmd.InOrStdin(), cmd.OutOrStdout(), render)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("session", "cli", "Session id used for the rewrite loop")
	runCmd.Flags().Bool("plain", false, "Print the report as raw markdown")
}

func markdownRenderer(plain bool) func(string) (string, error) {
	if plain {
		return func(md string) (string, error) { return md, nil }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return func(md string) (string, error) { return md, nil }
	}
	return r.Render
}

// runSession drives one request: it starts the run, then reads rewrite
// instructions from in for as long as the run pauses.
func runSession(ctx context.Context, svc *assistant.Service, session, input string, in io.Reader, out io.Writer, render func(string) (string, error)) error {
	if strings.TrimSpace(input) == "" {
		input = "开始执行任务"
	}
	sink := terminalSink(out)
	reader := bufio.NewReader(in)

	res, err := svc.Start(ctx, session, input, sink)
	for err == nil && res.Interrupted() {
		fmt.Fprint(out, "\n\n✏️  改写指令（回车或输入“完成”结束）: ")
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if readErr == io.EOF && line == "" {
			line = "完成"
		}
		res, err = svc.Continue(ctx, session, strings.TrimSpace(line), sink)
	}
	if err != nil {
		return err
	}

	report, rerr := render(res.State.FinalReport)
	if rerr != nil {
		report = res.State.FinalReport
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, report)
	return nil
}

// terminalSink prints streamed text and progress notes. The final report is
// printed by runSession, so result events are skipped here.
func terminalSink(out io.Writer) event.Sink {
	return event.SinkFunc(func(e event.Event) {
		switch e.Type {
		case event.TypeChunk:
			fmt.Fprint(out, e.Content)
		case event.TypeIntent:
			fmt.Fprintf(out, "🎯 %s\n", e.Content)
			for _, step := range e.Plan {
				fmt.Fprintf(out, "   %s\n", step)
			}
		case event.TypeStatus:
			if e.Content != "completed" {
				fmt.Fprintf(out, "· %s\n", e.Content)
			}
		case event.TypeError:
			fmt.Fprintf(out, "❌ %s\n", e.Message)
		}
	})
}
