package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/korylprince/streamchat/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxStoreBytes bounds the message text kept in memory across conversations
const maxStoreBytes = 16 << 20

var (
	settingsPath string
	serverURL    string
	model        string
	systemPrompt string
	tools        bool
	timeout      time.Duration
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatclient",
		Short: "Chat with a streamchat server from the terminal",
		Long: `Starts an interactive chat session against a streamchat server.

Replies stream as they arrive. Press Ctrl-C to stop the current reply.
Type /new to start a new conversation and /exit to quit.

Example:
  chatclient --server http://localhost:3000/api --tools`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}

	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to a YAML settings file (defaults to streamchat/chatclient.yaml in the user config directory)")
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", defaultServer, "Server URL including the API prefix")
	rootCmd.Flags().StringVarP(&model, "model", "m", "", "Model to request (defaults to the server's model)")
	rootCmd.Flags().StringVarP(&systemPrompt, "system-prompt", "p", "", "System prompt to send with every turn")
	rootCmd.Flags().BoolVar(&tools, "tools", false, "Enable provider tools such as web search")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Timeout for each turn (0 for none)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func resolveSettings(cmd *cobra.Command) (*settings, error) {
	path, required := settingsPath, true
	if path == "" {
		path, required = defaultSettingsPath(), false
	}

	s, err := loadSettings(path, required)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		s.Server = serverURL
	}
	if flags.Changed("model") {
		s.Model = model
	}
	if flags.Changed("system-prompt") {
		s.SystemPrompt = systemPrompt
	}
	if flags.Changed("tools") {
		s.Tools = tools
	}
	return s, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sess := newSession(client.New(s.Server), &printingStore{MemoryStore: client.NewMemoryStore(maxStoreBytes), w: out}, s.Settings)

	//Ctrl-C stops the active reply; with no reply streaming it quits
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if ctrl := sess.current(); ctrl.IsStreaming() {
				ctrl.AbortCurrentStream()
				fmt.Fprintln(out, color.YellowString("\n[stopped]"))
				continue
			}
			fmt.Fprintln(out, "\nGoodbye!")
			os.Exit(0)
		}
	}()

	fmt.Fprintf(out, "Connected to %s\n", color.CyanString(s.Server))
	return repl(cmd.Context(), cmd.InOrStdin(), out, sess)
}

func repl(ctx context.Context, in io.Reader, out io.Writer, sess *session) error {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, color.GreenString("\nYou: "))
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input = strings.TrimSpace(input)
		switch input {
		case "":
			if eof {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			continue
		case "/exit", "/quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/new":
			sess.reset()
			fmt.Fprintln(out, color.YellowString("Started a new conversation"))
			continue
		}

		if err := sendTurn(ctx, out, sess.current(), input); err != nil {
			return err
		}
		if eof {
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
	}
}

func sendTurn(ctx context.Context, out io.Writer, ctrl *client.Controller, input string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprint(out, color.BlueString("Assistant: "))
	err := ctrl.SendTurn(ctx, input)
	fmt.Fprintln(out)

	switch {
	case errors.Is(err, client.ErrEmptyTurn), errors.Is(err, client.ErrStreamActive):
		fmt.Fprintln(out, color.YellowString(err.Error()))
		return nil
	case err != nil:
		return err
	}
	return nil
}
