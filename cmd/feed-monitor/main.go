package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"vidstream/internal/events"
)

func main() {
	addr := "127.0.0.1:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected to engagement feed:", addr)
	fmt.Println("Waiting for likes and follows...")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			fmt.Println(sc.Text())
			continue
		}
		fmt.Println(describe(e))
	}
	fmt.Println("Disconnected.")
}

func describe(e events.Event) string {
	at := time.Unix(e.Timestamp, 0).Format("15:04:05")
	switch e.Type {
	case events.TypeLike, events.TypeUnlike:
		return fmt.Sprintf("[%s] user %d %sd video %d (likes: %d)", at, e.ActorID, e.Type, e.VideoID, e.Count)
	case events.TypeFollow, events.TypeUnfollow:
		return fmt.Sprintf("[%s] user %d %sed user %d (followers: %d)", at, e.ActorID, e.Type, e.TargetUserID, e.Count)
	default:
		return fmt.Sprintf("[%s] %s from user %d", at, e.Type, e.ActorID)
	}
}
