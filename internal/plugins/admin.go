package plugins

import (
	"context"
	"fmt"

	"plugbot/internal/core/domain"
	"plugbot/internal/core/domain/command"
	"plugbot/internal/core/port"
)

var aclSchema = []command.Field{
	{Name: "action", Choices: []any{"add", "del", "see", "test"}},
	{Name: "identity", Default: command.String},
	{Name: "role", Default: "member"},
}

// Admin manages the bot itself: the ACL table, hot reloads and
// shutdown.
type Admin struct {
	api  port.BotAPI
	cmds []*command.Descriptor
}

func NewAdmin(api port.BotAPI, _ map[string]any) (port.Plugin, error) {
	a := &Admin{api: api}
	a.cmds = []*command.Descriptor{
		command.New("acl").
			Title("Access control list management").
			Doc("Add, remove or inspect identity role assignments. Roles granted to a bare domain cover every identity under it.").
			Usage("[add|del|see|test] identity [role]").
			Allow(api.AdminOnly()).
			Handle(a.handleACL).
			Build(),
		command.New("rehash").
			Title("Reload the plugin set").
			Doc("Reload the bot plugins without dropping the connection.").
			Allow(api.OwnerOnly()).
			Deny("You are insufficiently cool, go away").
			Handle(a.handleRehash).
			Build(),
		command.New("die").
			Title("Kill the bot").
			Doc("Stops the bot process.").
			Allow(api.OwnerOnly()).
			Deny("You are insufficiently cool, go away").
			Handle(a.handleDie).
			Build(),
		command.New("register").
			Title("Claim first ownership").
			Hidden().
			Handle(a.handleRegister).
			Build(),
	}

	return a, nil
}

func (a *Admin) Name() string { return "admin" }

func (a *Admin) Commands() []*command.Descriptor { return a.cmds }

func (a *Admin) FreeText() []*command.FreeText { return nil }

func (a *Admin) handleACL(_ context.Context, _ string, args string, _ *domain.Message) string {
	parsed, err := command.ParseArgs(args, aclSchema)
	if err != nil {
		return err.Error()
	}

	id := domain.Identity(parsed.String("identity"))
	switch parsed.String("action") {
	case "add":
		role, err := domain.ParseRole(parsed.String("role"))
		if err != nil {
			return fmt.Sprintf("%s is not a valid role", parsed.String("role"))
		}
		if err := a.api.ACL().SetRole(id, role); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s is now %s", id, role)
	case "del":
		a.api.ACL().Remove(id)
		return fmt.Sprintf("%s removed", id)
	case "see":
		role := a.api.ACL().Role(id)
		suffix, ok := a.api.ACL().MatchingSuffix(id)
		if ok && suffix != string(id) {
			return fmt.Sprintf("%s has role %s (via %s)", id, role, suffix)
		}
		return fmt.Sprintf("%s has role %s", id, role)
	case "test":
		role, err := domain.ParseRole(parsed.String("role"))
		if err != nil {
			return fmt.Sprintf("%s is not a valid role", parsed.String("role"))
		}
		if a.api.ACL().Check(id, role) {
			return fmt.Sprintf("%s passes as %s", id, role)
		}
		return fmt.Sprintf("%s does not pass as %s", id, role)
	}

	return ""
}

func (a *Admin) handleRehash(_ context.Context, _ string, _ string, _ *domain.Message) string {
	a.api.Rehash()
	return "Rehashed boss"
}

func (a *Admin) handleDie(_ context.Context, _ string, _ string, _ *domain.Message) string {
	go a.api.Shutdown()
	return "Dying (you'll never see this message)"
}

// handleRegister lets the very first user claim ownership of a bot
// with an empty ACL.
func (a *Admin) handleRegister(_ context.Context, _ string, _ string, msg *domain.Message) string {
	if a.api.ACL().Count() > 0 {
		return ""
	}

	id, ok := a.api.RealIdentity(msg)
	if !ok {
		return ""
	}
	if err := a.api.ACL().SetRole(id, domain.RoleOwner); err != nil {
		return err.Error()
	}

	return "You are now my owner."
}
