package commands

import (
	"testing"

	"axiombot/pkg/message"
)

func TestRequestTarget(t *testing.T) {
	cases := []struct {
		name  string
		msg   message.Message
		match string
		want  string
	}{
		{"mention wins", message.Message{Mentions: []string{"1@s.whatsapp.net"}, Quoted: &message.Quoted{Sender: "2@s.whatsapp.net"}}, "3", "1@s.whatsapp.net"},
		{"quoted author", message.Message{Quoted: &message.Quoted{Sender: "2@s.whatsapp.net"}}, "", "2@s.whatsapp.net"},
		{"spaced number", message.Message{}, "+234 700 000 0000 spamming", "2347000000000@s.whatsapp.net"},
		{"full jid", message.Message{}, "2347000000000@s.whatsapp.net please", "2347000000000@s.whatsapp.net"},
		{"no target", message.Message{}, "everyone", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &Request{Message: &tc.msg, Match: tc.match}
			if got := req.Target(); got != tc.want {
				t.Fatalf("Target() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDefinitionKindAndHelp(t *testing.T) {
	cmd := &Definition{Trigger: "ping"}
	text := &Definition{On: OnText}
	hidden := &Definition{Trigger: "menu", Hidden: true}

	if cmd.Kind() != OnCommand || !cmd.VisibleInHelp() {
		t.Fatalf("zero On should be a visible command")
	}
	if text.VisibleInHelp() || hidden.VisibleInHelp() {
		t.Fatalf("passive and hidden definitions stay out of help")
	}
}
