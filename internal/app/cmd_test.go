package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{nil, CommandServe},
		{[]string{}, CommandServe},
		{[]string{"serve"}, CommandServe},
		{[]string{"healthcheck"}, CommandHealthcheck},
		{[]string{"news"}, CommandNews},
		{[]string{"news", "jp"}, CommandNews},
		{[]string{"watchlist", "add", "AAPL"}, CommandWatchlist},
		{[]string{"quotes"}, CommandQuotes},
		{[]string{"unknown"}, CommandServe},
	}

	for _, tt := range tests {
		if got := ParseCommand(tt.args); got != tt.want {
			t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandHealthcheck, "healthcheck"},
		{CommandNews, "news"},
		{CommandWatchlist, "watchlist"},
		{CommandQuotes, "quotes"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
