package pluginkit

import (
	"context"

	"axiombot/pkg/commands"
	"axiombot/pkg/gateway"
)

// Replies shared by group commands.
const (
	GroupOnly   = "_This command only works in groups_"
	BotNotAdmin = "_Bot is not admin_"
	NotAdmin    = "_You are not an admin_"
)

// GroupAdmin checks that req comes from a group admin (sudo counts) and,
// when needBot is set, that the bot administers the group as well. On a
// failed check it answers the chat and returns a nil info.
func GroupAdmin(ctx context.Context, req *commands.Request, needBot bool) (*gateway.GroupInfo, error) {
	if !req.Message.IsGroup {
		return nil, req.Reply(ctx, GroupOnly)
	}
	info, err := req.Gateway.GroupInfo(ctx, req.Chat())
	if err != nil {
		return nil, req.Reply(ctx, Failed("get group info", err))
	}
	if needBot && !info.IsAdmin(req.Gateway.Self()) {
		return nil, req.Reply(ctx, BotNotAdmin)
	}
	if !info.IsAdmin(req.Message.Sender) && !req.Message.Sudo {
		return nil, req.Reply(ctx, NotAdmin)
	}
	return info, nil
}
