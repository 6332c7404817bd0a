package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rule-chatbot/internal/usecase"
)

func main() {
	if err := newRootCmd(usecase.NewReplyService()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error processing message: %v\n", err)
		os.Exit(1)
	}
}

type replier interface {
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
}

func newRootCmd(svc replier) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "chatbot [message...]",
		Short: "Reply to a message with the rule-based chatbot",
		Long: `Reply to a message with the rule-based chatbot.

The message is the arguments joined by spaces. Without arguments a single
line is read from standard input. Pass messages starting with "-" after "--".`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return runInteractive(cmd.Context(), svc, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runOnce(cmd.Context(), svc, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "chat until quit, exit or q")
	return cmd
}

func runOnce(ctx context.Context, svc replier, args []string, in io.Reader, out io.Writer) error {
	var utterance string
	if len(args) > 0 {
		utterance = strings.Join(args, " ")
	} else {
		line, err := readLine(bufio.NewReader(in))
		if err != nil {
			return err
		}
		utterance = strings.TrimSpace(line)
	}

	res, err := svc.Reply(ctx, usecase.ReplyInput{Utterance: utterance})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, res.Reply)
	return err
}

func runInteractive(ctx context.Context, svc replier, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	fmt.Fprintln(out, "Interactive chatbot mode. Type 'quit' to exit.")
	for {
		fmt.Fprint(out, "You: ")
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		utterance := strings.TrimSpace(line)
		switch strings.ToLower(utterance) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		res, err := svc.Reply(ctx, usecase.ReplyInput{Utterance: utterance})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Bot: %s\n", res.Reply)
	}
}

// readLine returns the next line without its terminator. A final line with
// no newline is accepted; io.EOF is returned only when nothing was read.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read input: %w", io.EOF)
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
