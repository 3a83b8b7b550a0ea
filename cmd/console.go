package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/services"

	"github.com/google/uuid"
)

// runConsole is a line-oriented client for manual testing:
//
//	join <room-uuid> <nickname>
//	send <text...>
//	leave
//	quit
//
// On join it subscribes both room topics, prints the history and
// member snapshots, then tails the live streams.
func runConsole(ctx context.Context, log *slog.Logger, chat services.IChatService) {
	scanner := bufio.NewScanner(os.Stdin)
	var session *consoleSession

	fmt.Println("commands: join <room-uuid> <nickname> | send <text> | leave | quit")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "join":
			if len(fields) != 3 {
				fmt.Println("usage: join <room-uuid> <nickname>")
				continue
			}
			roomID, err := uuid.Parse(fields[1])
			if err != nil {
				fmt.Println("bad room id:", err)
				continue
			}
			if session != nil {
				session.close()
			}
			session, err = openSession(ctx, log, chat, roomID, fields[2])
			if err != nil {
				fmt.Println("join failed:", err)
				session = nil
			}
		case "send":
			if session == nil {
				fmt.Println("join a room first")
				continue
			}
			content := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "send"))
			if _, err := chat.Send(ctx, domain.SendCommand{
				RoomID:   session.roomID,
				SenderID: session.participantID,
				Content:  content,
			}); err != nil {
				fmt.Println("send failed:", err)
			}
		case "leave":
			if session == nil {
				continue
			}
			if _, err := chat.Leave(ctx, session.participantID); err != nil {
				fmt.Println("leave failed:", err)
			}
			session.close()
			session = nil
		case "quit":
			if session != nil {
				session.close()
			}
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

type consoleSession struct {
	roomID        uuid.UUID
	participantID uuid.UUID
	cancel        context.CancelFunc
}

func (s *consoleSession) close() { s.cancel() }

func openSession(ctx context.Context, log *slog.Logger, chat services.IChatService,
	roomID uuid.UUID, nickname string) (*consoleSession, error) {
	p, err := chat.Join(ctx, domain.JoinCommand{RoomID: roomID, Nickname: nickname})
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	history, messageStream, err := chat.SubscribeMessages(subCtx, roomID)
	if err != nil {
		cancel()
		return nil, err
	}
	members, memberStream, err := chat.SubscribeMembers(subCtx, roomID)
	if err != nil {
		cancel()
		return nil, err
	}

	for _, m := range history {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Format("15:04:05"), m.Nickname, m.Content)
	}
	for _, member := range members {
		fmt.Printf("* %s is here\n", member.Nickname)
	}

	go tail(subCtx, messageStream)
	go tail(subCtx, memberStream)

	log.Debug("Console session opened", "participant_id", p.ID, "room_id", roomID)
	return &consoleSession{roomID: roomID, participantID: p.ID, cancel: cancel}, nil
}

func tail(ctx context.Context, stream <-chan event.DomainEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			switch e := evt.(type) {
			case event.MessageSent:
				fmt.Printf("[%s] %s: %s\n", e.At.Format("15:04:05"), e.Nickname, e.Content)
			case event.PresenceChanged:
				switch e.Action {
				case event.ActionEnter:
					fmt.Printf("* %s entered\n", e.Participant.Nickname)
				case event.ActionLeave:
					fmt.Printf("* %s left\n", e.Participant.Nickname)
				}
			}
		}
	}
}
