package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeTelegram отвечает на getMe и sendMessage; chat_id=403 «заблокировал» бота.
func fakeTelegram(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"ops","username":"ops_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			chatID := r.FormValue("chat_id")
			if chatID == "403" {
				fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
				return
			}
			mu.Lock()
			sent = append(sent, chatID+":"+r.FormValue("text"))
			mu.Unlock()
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"}}}`, chatID)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestTelegramNotifyAllAdmins(t *testing.T) {
	srv, sent := fakeTelegram(t)
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatal(err)
	}
	tg := &Telegram{api: api, adminIDs: []int64{10, 403, 20}}

	err = tg.Notify(context.Background(), "откат")

	if err == nil || !strings.Contains(err.Error(), "admin 403") {
		t.Fatalf("err = %v, want failure for admin 403", err)
	}
	if len(*sent) != 2 || (*sent)[0] != "10:откат" || (*sent)[1] != "20:откат" {
		t.Fatalf("sent = %v", *sent)
	}
}

func TestTelegramNotifyStopsOnCancel(t *testing.T) {
	srv, sent := fakeTelegram(t)
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatal(err)
	}
	tg := &Telegram{api: api, adminIDs: []int64{10}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.Notify(ctx, "x"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("sent = %v", *sent)
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Notify(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
