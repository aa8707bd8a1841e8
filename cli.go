package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/surya-d-naidu/HealthCareBot/config"
	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/httpapi"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	root := &cobra.Command{
		Use:           "garuda",
		Short:         "Dr. Garuda health and wellness chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	root.AddCommand(serveCmd, newChatCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API (and the Telegram bot when configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newChatCmd() *cobra.Command {
	var (
		server string
		topic  string
		id     string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running server from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := conversation.ParseTopic(topic)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			c := &chatClient{
				endpoint: strings.TrimSuffix(server, "/") + "/api/chat/stream",
				topic:    t,
				id:       id,
				out:      cmd.OutOrStdout(),
			}
			return c.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:5000", "base URL of the garuda server")
	cmd.Flags().StringVar(&topic, "topic", string(conversation.TopicHealthAnalysis), "healthAnalysis, friendlyCompanion or emergencySupport")
	cmd.Flags().StringVar(&id, "conversation", "", "conversation id to resume (a new one is generated when empty)")
	return cmd
}

type chatClient struct {
	endpoint string
	topic    conversation.Topic
	id       string
	out      io.Writer
	client   http.Client
}

func (c *chatClient) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "Conversation %s (%s). Say hello to begin, Ctrl-D to quit.\n", c.id, c.topic)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.send(ctx, line); err != nil {
			return err
		}
	}
}

func (c *chatClient) send(ctx context.Context, message string) error {
	body, err := json.Marshal(httpapi.ChatRequest{ConversationID: c.id, Topic: string(c.topic), UserMessage: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		fmt.Fprintf(c.out, "[%s] %s\n", resp.Status, failure.Error)
		return nil
	}

	res, err := httpapi.ReadStream(resp.Body, func(chunk string) {
		fmt.Fprint(c.out, chunk, " ")
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out)

	switch {
	case res.Error != "":
		fmt.Fprintln(c.out, res.Error)
	case res.Meta != nil && res.Meta.Emergency && res.Meta.Resources != nil:
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, conversation.EmergencyNotice(*res.Meta.Resources))
	}
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
