package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/calliope-ai/calliope/internal/config"
	"github.com/calliope-ai/calliope/internal/gateway"
	"github.com/calliope-ai/calliope/internal/session"
	"go.uber.org/zap"
)

const usage = `Commands:
  /new              start a new chat
  /list             list chats
  /select <number>  switch to a chat from /list
  /rename <title>   rename the current chat
  /delete           delete the current chat
  /quit             exit
Anything else is sent as a message.`

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	client := gateway.NewClient(cfg.GatewayURL, cfg.APIToken, cfg.RequestTimeout, logger)
	manager := session.NewManager(client, logger)

	if err := manager.Sync(ctx); err != nil {
		logger.Fatal("failed to load chats", zap.Error(err))
	}

	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt(manager)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/new":
			if _, err := manager.NewChat(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case line == "/list":
			for i, c := range manager.Chats() {
				fmt.Printf("%2d. %s (%s)\n", i+1, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
			}
		case strings.HasPrefix(line, "/select "):
			selectChat(ctx, manager, strings.TrimPrefix(line, "/select "))
		case strings.HasPrefix(line, "/rename "):
			current := manager.Current()
			if current == nil {
				fmt.Println("no chat selected")
				continue
			}
			if err := manager.Rename(ctx, current.ID, strings.TrimPrefix(line, "/rename ")); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case line == "/delete":
			current := manager.Current()
			if current == nil {
				fmt.Println("no chat selected")
				continue
			}
			if err := manager.Delete(ctx, current.ID); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Println(usage)
		default:
			send(ctx, manager, line)
		}
	}
}

func prompt(manager *session.Manager) {
	if c := manager.Current(); c != nil {
		fmt.Printf("[%s] > ", c.Title)
	} else {
		fmt.Print("> ")
	}
}

func selectChat(ctx context.Context, manager *session.Manager, arg string) {
	chats := manager.Chats()
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(chats) {
		fmt.Println("usage: /select <number from /list>")
		return
	}
	if err := manager.Select(ctx, chats[n-1].ID); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func send(ctx context.Context, manager *session.Manager, content string) {
	reply, err := manager.Send(ctx, content)
	if errors.Is(err, session.ErrBusy) {
		fmt.Println("still waiting for the previous reply")
		return
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if reply != nil {
		fmt.Printf("assistant: %s\n", reply.Content)
	}
}
