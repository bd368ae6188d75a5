package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/auth"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/repository"
)

const commandTimeout = 30 * time.Second

const (
	guestHelp = `Available commands:
/login <email> <password> - Sign in with your logbook account
/help - Show this message`

	studentHelp = `Available commands:
/entries - Show your logbook
/submit - Submit all drafts for approval
/link <code> - Link to your industrial supervisor
/linkacademic <code> - Link to your academic supervisor
/logout - Sign out
/help - Show this message`

	supervisorHelp = `Available commands:
/students - Students linked to you
/pending <studentId> - Entries waiting for review
/approve <studentId> <entryId> [feedback] - Approve an entry
/reject <studentId> <entryId> [feedback] - Reject an entry
/logout - Sign out
/help - Show this message

Only industrial supervisors can approve or reject entries.`

	adminHelp = `Admin commands:
/users [role] - List users, optionally only one role
Roles: student, industrial-supervisor, academic-supervisor, admin`
)

var (
	errNotSignedIn = errors.New("you are not signed in, use /login <email> <password>")
	errForbidden   = errors.New("this command is not available for your role")
)

type commandHandler func(context.Context, *tgbotapi.Message) error

func (b *Bot) routeCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":        b.handleStart,
		"help":         b.handleHelp,
		"login":        b.handleLogin,
		"logout":       b.handleLogout,
		"entries":      b.handleEntries,
		"submit":       b.handleSubmit,
		"link":         b.handleLinkIndustrial,
		"linkacademic": b.handleLinkAcademic,
		"students":     b.handleStudents,
		"pending":      b.handlePending,
		"approve":      b.reviewHandler(models.StatusApproved),
		"reject":       b.reviewHandler(models.StatusRejected),
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"users": b.handleUsers,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := msg.Command()

	handler, ok := b.routeCommands(cmd)
	if !ok {
		handler, ok = b.routeAdminCommands(cmd)
		if ok && !b.isAdmin(ctx, msg) {
			ok = false
		}
	}
	if !ok {
		b.sendHelp(msg.Chat.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.Error.Printf("Command /%s from %d failed: %v", cmd, msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
	}
}

// isAdmin is true for telegram ids listed in the config and for signed in admins.
func (b *Bot) isAdmin(ctx context.Context, msg *tgbotapi.Message) bool {
	if b.admins[msg.From.ID] {
		return true
	}
	user, err := b.currentUser(ctx, msg)
	return err == nil && user.Role() == models.RoleAdmin
}

// currentUser resolves the telegram account to a signed in user. Links whose session
// is no longer valid are dropped.
func (b *Bot) currentUser(ctx context.Context, msg *tgbotapi.Message) (models.User, error) {
	link, err := b.service.Telegram.Get(ctx, msg.From.ID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, errNotSignedIn
	}

	user, _, err := b.service.Authenticate(ctx, link.SessionToken)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, app.ErrProfileNotFound) {
		if err := b.service.Telegram.Delete(ctx, msg.From.ID); err != nil {
			logger.Error.Printf("Failed to drop stale telegram link %d: %v", msg.From.ID, err)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Bot) requireRole(ctx context.Context, msg *tgbotapi.Message, roles ...models.Role) (models.User, error) {
	user, err := b.currentUser(ctx, msg)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if user.Role() == role {
			return user, nil
		}
	}
	return nil, errForbidden
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	text := guestHelp
	if user, err := b.currentUser(ctx, msg); err == nil {
		switch {
		case user.Role() == models.RoleStudent:
			text = studentHelp
		case user.Role().IsSupervisor():
			text = supervisorHelp
		case user.Role() == models.RoleAdmin:
			text = "/logout - Sign out"
		}
	}
	if b.isAdmin(ctx, msg) {
		text += "\n\n" + adminHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Use commands to talk to the bot. Send /help for the list.")
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	text := "Hi! I keep your SIWES logbook at hand.\n\n"
	if user, err := b.currentUser(ctx, msg); err == nil {
		text += fmt.Sprintf("You are signed in as %s (%s). Use /help for the list of commands.", user.Profile().FullName(), user.Role())
	} else {
		text += "Use /login <email> <password> to sign in."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) error {
	// the password should not stay in the chat history
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		logger.Debug.Printf("Failed to delete login message in chat %d: %v", msg.Chat.ID, err)
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return fmt.Errorf("usage: /login <email> <password>")
	}

	session, err := b.service.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	link := &repository.TelegramLink{
		UserID:       session.User.Profile().ID,
		Username:     msg.From.UserName,
		LinkedAt:     time.Now().UTC(),
		SessionToken: session.Token,
	}
	if err := b.service.Telegram.Put(ctx, msg.From.ID, link); err != nil {
		return err
	}

	logger.Info.Printf("Telegram user %d signed in as %s", msg.From.ID, link.UserID)
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Signed in as %s (%s)", session.User.Profile().FullName(), session.User.Role()))
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	link, err := b.service.Telegram.Get(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if link == nil {
		return b.sendMessage(msg.Chat.ID, "You are not signed in.")
	}

	if err := b.service.SignOut(ctx, link.SessionToken); err != nil {
		logger.Error.Printf("Failed to sign out telegram user %d: %v", msg.From.ID, err)
	}
	if err := b.service.Telegram.Delete(ctx, msg.From.ID); err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, "Signed out.")
}

func (b *Bot) handleEntries(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireRole(ctx, msg, models.RoleStudent)
	if err != nil {
		return err
	}

	entries, err := b.service.Logbook.List(ctx, user.Profile().ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return b.sendMessage(msg.Chat.ID, "Your logbook is empty.")
	}

	return b.sendMessage(msg.Chat.ID, "Your logbook:\n\n"+formatEntries(entries))
}

func (b *Bot) handleSubmit(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireRole(ctx, msg, models.RoleStudent)
	if err != nil {
		return err
	}

	moved, err := b.service.Logbook.SubmitForApproval(ctx, user.Profile().ID)
	if err != nil {
		return err
	}
	if moved == 0 {
		return b.sendMessage(msg.Chat.ID, "No drafts to submit.")
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("📨 Submitted %d entries for approval.", moved))
}

func (b *Bot) handleLinkIndustrial(ctx context.Context, msg *tgbotapi.Message) error {
	return b.link(ctx, msg, b.service.Supervision.LinkIndustrial)
}

func (b *Bot) handleLinkAcademic(ctx context.Context, msg *tgbotapi.Message) error {
	return b.link(ctx, msg, b.service.Supervision.LinkAcademic)
}

func (b *Bot) link(ctx context.Context, msg *tgbotapi.Message, linkFn func(context.Context, string, string) (*models.LinkResult, error)) error {
	user, err := b.requireRole(ctx, msg, models.RoleStudent)
	if err != nil {
		return err
	}

	code := strings.TrimSpace(msg.CommandArguments())
	if code == "" {
		return fmt.Errorf("usage: /%s <code>", msg.Command())
	}

	result, err := linkFn(ctx, user.Profile().ID, code)
	if err != nil {
		return err
	}

	mark := "❌"
	if result.Success {
		mark = "✅"
	}
	return b.sendMessage(msg.Chat.ID, mark+" "+result.Message)
}

func (b *Bot) handleStudents(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireRole(ctx, msg, models.RoleIndustrialSupervisor, models.RoleAcademicSupervisor)
	if err != nil {
		return err
	}

	students, err := b.service.Supervision.Students(ctx, user.Profile().ID)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return b.sendMessage(msg.Chat.ID, "No students have linked to you yet.")
	}

	var text strings.Builder
	text.WriteString("Your students:\n\n")
	for _, s := range students {
		text.WriteString(fmt.Sprintf("👤 %s (%s)\nid: %s\n\n", s.FullName(), orNA(s.StudentID), s.ID))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

// supervisedStudent checks the first argument is a student linked to the supervisor.
func (b *Bot) supervisedStudent(ctx context.Context, supervisor models.User, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("a student id is required, see /students")
	}

	ok, err := b.service.Supervision.Supervises(ctx, supervisor.Profile().ID, args[0])
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("student %s is not linked to you", args[0])
	}
	return args[0], nil
}

func (b *Bot) handlePending(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireRole(ctx, msg, models.RoleIndustrialSupervisor, models.RoleAcademicSupervisor)
	if err != nil {
		return err
	}

	studentID, err := b.supervisedStudent(ctx, user, strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}

	entries, err := b.service.Logbook.List(ctx, studentID)
	if err != nil {
		return err
	}

	pending := entries[:0]
	for _, e := range entries {
		if e.Status == models.StatusPendingApproval {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return b.sendMessage(msg.Chat.ID, "Nothing is waiting for review.")
	}

	return b.sendMessage(msg.Chat.ID, "Waiting for review:\n\n"+formatEntries(pending))
}

func (b *Bot) reviewHandler(status models.Status) commandHandler {
	return func(ctx context.Context, msg *tgbotapi.Message) error {
		user, err := b.requireRole(ctx, msg, models.RoleIndustrialSupervisor)
		if err != nil {
			return err
		}

		studentID, entryID, feedback, err := parseReview(msg.CommandArguments())
		if err != nil {
			return fmt.Errorf("usage: /%s <studentId> <entryId> [feedback]", msg.Command())
		}
		ok, err := b.service.Supervision.Responsible(ctx, user.Profile().ID, studentID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("student %s is not linked to you", studentID)
		}

		entry, err := b.service.Logbook.Review(ctx, studentID, entryID, &models.ReviewInput{
			Status:   status,
			Feedback: feedback,
		})
		if err != nil {
			return err
		}

		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Entry for %s (%s) is now %s", entry.Date, entry.Day, entry.Status))
	}
}

func (b *Bot) handleUsers(ctx context.Context, msg *tgbotapi.Message) error {
	role := models.Role(strings.TrimSpace(msg.CommandArguments()))

	users, err := b.service.Accounts.List(ctx, role)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return b.sendMessage(msg.Chat.ID, "No users found.")
	}

	var text strings.Builder
	for _, u := range users {
		rec := models.RecordOf(u)
		text.WriteString(fmt.Sprintf("%s %s <%s> %s", rec.FirstName, rec.LastName, rec.Email, rec.Role))
		if rec.SupervisorCode != "" {
			text.WriteString(" code " + rec.SupervisorCode)
		}
		text.WriteString("\n")
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

// parseReview splits "<studentId> <entryId> [feedback...]". Feedback is nil when absent.
func parseReview(args string) (studentID, entryID string, feedback *string, err error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", nil, fmt.Errorf("student and entry ids are required")
	}

	if len(fields) > 2 {
		text := strings.Join(fields[2:], " ")
		feedback = &text
	}
	return fields[0], fields[1], feedback, nil
}

func formatEntries(entries []models.LogbookEntry) string {
	var text strings.Builder
	for _, e := range entries {
		text.WriteString(fmt.Sprintf("📝 %s %s, week %d [%s]\nid: %s\nTasks: %s\nSkills: %s\n",
			e.Date, e.Day, e.Week, e.Status, e.ID, e.Tasks, e.SkillsLearned))
		if e.SupervisorFeedback != "" {
			text.WriteString("💬 " + e.SupervisorFeedback + "\n")
		}
		text.WriteString("\n")
	}
	return text.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
