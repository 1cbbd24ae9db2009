// chatctl is a terminal chat client for manual testing against the
// devserver (or any service implementing the same contract).
//
// Commands:
//
//	/chats            list the conversation roster
//	/open <chatId>    open a conversation
//	/new <userId>     start a conversation with another user
//	/who              show online users
//	/close            close the open conversation
//	anything else     send it as a message to the open conversation
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nandovm/chatcore/internal/bridge"
	"github.com/nandovm/chatcore/internal/config"
	"github.com/nandovm/chatcore/internal/engine"
	"github.com/nandovm/chatcore/internal/presence"
	"github.com/nandovm/chatcore/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	rest := transport.NewClient(cfg.APIBaseURL, cfg.Token)
	sock, err := transport.DialSocket(ctx, cfg.SocketURL, cfg.Token, nil)
	if err != nil {
		log.Fatalf("failed to connect push channel: %v", err)
	}
	defer sock.Close()

	eng := engine.New(cfg.UserID, rest, rest, sock)
	b := bridge.Attach(sock, eng)
	defer b.Close()

	online := presence.NewTracker()
	online.Bind(sock)

	typing := engine.NewDebouncer(cfg.UserID, sock, engine.DefaultQuietPeriod, nil)
	dispatcher := engine.NewDispatcher(eng, rest, typing)

	eng.SetOnChange(func() { render(eng) })

	if chats, err := rest.ListConversations(ctx); err != nil {
		log.Printf("failed to load conversations: %v", err)
	} else {
		eng.LoadRoster(chats)
	}

	fmt.Printf("connected as %s — type /chats to begin\n", cfg.UserID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/chats":
			printRoster(eng, online)
		case line == "/who":
			fmt.Printf("online: %s\n", strings.Join(online.Snapshot(), ", "))
		case line == "/close":
			typing.Stop()
			eng.Deselect()
		case strings.HasPrefix(line, "/open "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			typing.Stop()
			if err := eng.SelectConversation(ctx, id); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case strings.HasPrefix(line, "/new "):
			other := strings.TrimSpace(strings.TrimPrefix(line, "/new "))
			if _, err := eng.CreateConversation(ctx, other); err != nil {
				fmt.Printf("! %v\n", err)
			}
		default:
			typing.Keystroke(activeID(eng), line)
			if _, err := dispatcher.Send(ctx, line, nil); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func activeID(eng *engine.Engine) string {
	id, _ := eng.ActiveID()
	return id
}

func printRoster(eng *engine.Engine, online *presence.Tracker) {
	roster := eng.Roster()
	if len(roster) == 0 {
		fmt.Println("no conversations yet — use /new <userId>")
		return
	}
	for _, c := range roster {
		marker := " "
		if online.Online(c.Counterpart.ID) {
			marker = "*"
		}
		fmt.Printf("%s %s  [%d unseen]  %s: %s\n",
			marker, c.ConversationID, c.UnseenCount,
			c.LatestMessage.Sender, c.LatestMessage.Text)
	}
}

func render(eng *engine.Engine) {
	active, ok := eng.Active()
	if !ok {
		return
	}
	if len(active.Messages) > 0 {
		last := active.Messages[len(active.Messages)-1]
		seen := ""
		if last.Seen {
			seen = " ✓"
		}
		fmt.Printf("[%s] %s: %s%s\n", active.ConversationID, last.Sender, last.Text, seen)
	}
	if active.CounterpartTyping {
		fmt.Printf("[%s] %s is typing…\n", active.ConversationID, active.Counterpart.ID)
	}
}
