// Seeds rooms into the store. Room CRUD belongs to an external
// collaborator in production; this tool stands in for it during local
// development. Run it while the core process is stopped, BadgerDB
// allows a single writer process.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"chat-core/domain"
	"chat-core/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

func main() {
	_ = godotenv.Load()
	path := flag.String("db", "./data", "badger database path")
	names := flag.String("rooms", "general,random", "comma separated room names")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatalf("database opening failed: %v", err)
	}
	defer db.Close()

	rooms := repositories.NewRoomRepository(db)
	created := lo.Map(strings.Split(*names, ","), func(name string, _ int) domain.Room {
		return domain.NewRoom(strings.TrimSpace(name), "")
	})

	for _, room := range created {
		if err := rooms.Create(room); err != nil {
			log.Fatalf("creating room %q failed: %v", room.Name, err)
		}
		fmt.Printf("%s  %s\n", room.ID, room.Name)
	}
}
