// Package tcp implements the newline-delimited command channel. Each line is
// one command; authenticated commands carry the session token as their first
// argument and every command gets exactly one OK:/ERR: response line (history
// responses span multiple lines after the OK: header).
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/service"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

const maxLineBytes = 64 * 1024

// commandTimeout bounds every store and session operation a single command
// performs. A stalled backend turns into an ERR response, not a hung client.
const commandTimeout = 10 * time.Second

const (
	respInvalidSession = "ERR: Invalid or expired session"
	respUnknownCommand = "ERR: Unknown or invalid command"

	respHelp = "OK: Commands: /register /login /logout /validate_session /quit /help " +
		"/users /all_users /send_private /private /get_private_messages /delete_private_messages " +
		"/create_group /join_group /leave_group /my_groups /send /get_group_messages /delete_group_messages " +
		"/invite /accept_invite /reject_invite /my_invites " +
		"/send_friend_request /accept_friend_request /reject_friend_request /list_friends " +
		"/received_friend_requests /sent_friend_requests"
)

// Server is the TCP command listener.
type Server struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	messageService *service.MessageService
	groupService   *service.GroupService
	friendService  *service.FriendService
	logger         *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new instance of Server.
func NewServer(
	authService *service.AuthService,
	sessionService *service.SessionService,
	messageService *service.MessageService,
	groupService *service.GroupService,
	friendService *service.FriendService,
	logger *zap.Logger,
) *Server {
	return &Server{
		authService:    authService,
		sessionService: sessionService,
		messageService: messageService,
		groupService:   groupService,
		friendService:  friendService,
		logger:         logger,
		conns:          make(map[net.Conn]struct{}),
	}
}

// Start listens on addr and serves connections until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Command channel listening", zap.String("addr", addr))
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			s.logger.Warn("Accept failed", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		metrics.ConnectionsGauge.WithLabelValues("tcp").Inc()
		go s.handleConn(conn)
	}
}

// Shutdown stops accepting, closes open connections and waits for handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		metrics.ConnectionsGauge.WithLabelValues("tcp").Dec()
		s.wg.Done()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		response, quit := s.dispatch(ctx, cmd, args)
		cancel()
		if _, err := writer.WriteString(response + "\n"); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
		if quit {
			return
		}
	}
}

// dispatch executes one command. The second return value is true when the
// connection should close after the response.
func (s *Server) dispatch(ctx context.Context, cmd string, args []string) (string, bool) {
	switch cmd {
	case "/quit":
		return "OK: Disconnected", true
	case "/register":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.register(ctx, args[0], args[1]), false
	case "/login":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.login(ctx, args[0], args[1]), false
	case "/logout":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.logout(ctx, args[0]), false
	case "/validate_session":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		user, resp := s.authenticate(ctx, args[0])
		if user == nil {
			return resp, false
		}
		return "OK: " + user.Username, false
	case "/users":
		return s.onlineUsers(ctx), false
	case "/all_users":
		return s.allUsers(ctx), false
	case "/create_group":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			group, err := s.groupService.Create(ctx, user, args[1])
			if err != nil {
				return errResponse(err)
			}
			return fmt.Sprintf("OK: Group created: %s:%s", group.ID, group.Name)
		}), false
	case "/join_group":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			group, err := s.groupService.Join(ctx, user, groupID)
			if err != nil {
				return errResponse(err)
			}
			return "OK: Joined group " + group.Name
		}), false
	case "/leave_group":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			if err := s.groupService.Leave(ctx, user, groupID); err != nil {
				return errResponse(err)
			}
			return "OK: Left group"
		}), false
	case "/my_groups":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			groups, err := s.groupService.ListForUser(ctx, user.ID)
			if err != nil {
				return errResponse(err)
			}
			entries := make([]string, 0, len(groups))
			for _, g := range groups {
				entries = append(entries, fmt.Sprintf("%s:%s", g.ID, g.Name))
			}
			return "OK: My groups: " + strings.Join(entries, ", ")
		}), false
	case "/send":
		if len(args) < 3 {
			return respUnknownCommand, false
		}
		text := strings.Join(args[2:], " ")
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			if _, err := s.messageService.SendGroup(ctx, user, groupID, text); err != nil {
				return errResponse(err)
			}
			return "OK: Message sent"
		}), false
	case "/send_private", "/private":
		if len(args) < 3 {
			return respUnknownCommand, false
		}
		text := strings.Join(args[2:], " ")
		return s.withUser(ctx, args[0], func(user *models.User) string {
			if _, err := s.messageService.SendPrivate(ctx, user, args[1], text); err != nil {
				return errResponse(err)
			}
			return "OK: Message sent"
		}), false
	case "/get_group_messages":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			history, err := s.messageService.GroupHistory(ctx, user, groupID, 0)
			if err != nil {
				return errResponse(err)
			}
			return formatHistory(history)
		}), false
	case "/get_private_messages":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			history, err := s.messageService.PrivateHistory(ctx, user, args[1], 0)
			if err != nil {
				return errResponse(err)
			}
			return formatHistory(history)
		}), false
	case "/delete_group_messages":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			if _, err := s.messageService.DeleteGroupHistory(ctx, user, groupID); err != nil {
				return errResponse(err)
			}
			return "OK: Messages deleted"
		}), false
	case "/delete_private_messages":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			if _, err := s.messageService.DeletePrivateHistory(ctx, user, args[1]); err != nil {
				return errResponse(err)
			}
			return "OK: Messages deleted"
		}), false
	case "/send_friend_request":
		if len(args) < 2 {
			return respUnknownCommand, false
		}
		message := strings.Join(args[2:], " ")
		return s.withUser(ctx, args[0], func(user *models.User) string {
			if err := s.friendService.SendRequest(ctx, user, args[1], message); err != nil {
				return errResponse(err)
			}
			return "OK: Friend request sent"
		}), false
	case "/accept_friend_request":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			if err := s.friendService.Accept(ctx, user, args[1]); err != nil {
				return errResponse(err)
			}
			return "OK: Friend request accepted"
		}), false
	case "/reject_friend_request":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			if err := s.friendService.Reject(ctx, user, args[1]); err != nil {
				return errResponse(err)
			}
			return "OK: Friend request rejected"
		}), false
	case "/list_friends":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			friends, err := s.friendService.Friends(ctx, user.ID)
			if err != nil {
				return errResponse(err)
			}
			names := make([]string, 0, len(friends))
			for _, f := range friends {
				names = append(names, f.Username)
			}
			return "OK: Friends: " + strings.Join(names, ", ")
		}), false
	case "/received_friend_requests":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			requests, err := s.friendService.Received(ctx, user.ID)
			if err != nil {
				return errResponse(err)
			}
			names := make([]string, 0, len(requests))
			for _, q := range requests {
				names = append(names, q.FromUsername)
			}
			return "OK: Received friend requests: " + strings.Join(names, ", ")
		}), false
	case "/sent_friend_requests":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			requests, err := s.friendService.Sent(ctx, user.ID)
			if err != nil {
				return errResponse(err)
			}
			names := make([]string, 0, len(requests))
			for _, q := range requests {
				names = append(names, q.ToUsername)
			}
			return "OK: Sent friend requests: " + strings.Join(names, ", ")
		}), false
	case "/invite":
		if len(args) != 3 {
			return respUnknownCommand, false
		}
		return s.withGroup(ctx, args[0], args[1], func(user *models.User, groupID uuid.UUID) string {
			if _, err := s.groupService.Invite(ctx, user, groupID, args[2]); err != nil {
				return errResponse(err)
			}
			return "OK: Invite sent"
		}), false
	case "/accept_invite":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withInvite(ctx, args[0], args[1], func(user *models.User, inviteID uuid.UUID) string {
			group, err := s.groupService.AcceptInvite(ctx, user, inviteID)
			if err != nil {
				return errResponse(err)
			}
			return "OK: Invite accepted: joined " + group.Name
		}), false
	case "/reject_invite":
		if len(args) != 2 {
			return respUnknownCommand, false
		}
		return s.withInvite(ctx, args[0], args[1], func(user *models.User, inviteID uuid.UUID) string {
			if err := s.groupService.RejectInvite(ctx, user, inviteID); err != nil {
				return errResponse(err)
			}
			return "OK: Invite rejected"
		}), false
	case "/my_invites":
		if len(args) != 1 {
			return respUnknownCommand, false
		}
		return s.withUser(ctx, args[0], func(user *models.User) string {
			invites, err := s.groupService.Invites(ctx, user.ID)
			if err != nil {
				return errResponse(err)
			}
			entries := make([]string, 0, len(invites))
			for _, inv := range invites {
				entries = append(entries, fmt.Sprintf("%s:%s from:%s", inv.ID, inv.GroupName, inv.FromUsername))
			}
			return "OK: Invites: " + strings.Join(entries, ", ")
		}), false
	case "/help":
		return respHelp, false
	default:
		return respUnknownCommand, false
	}
}

func (s *Server) register(ctx context.Context, username, password string) string {
	user, err := s.authService.Register(ctx, username, password)
	if err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateIdentity) {
			return "ERR: Username already taken"
		}
		return errResponse(err)
	}
	return "OK: Registered " + user.Username
}

func (s *Server) login(ctx context.Context, username, password string) string {
	session, user, err := s.authService.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidCredentials) {
			return "ERR: Invalid username or password"
		}
		return errResponse(err)
	}
	return fmt.Sprintf("OK: Logged in %s SESSION: %s", user.Username, session.Token)
}

func (s *Server) logout(ctx context.Context, token string) string {
	if err := s.authService.Logout(ctx, token); err != nil {
		if domainErrors.IsUnauthorized(err) || errors.Is(err, domainErrors.ErrSessionNotFound) {
			return respInvalidSession
		}
		return errResponse(err)
	}
	return "OK: Logged out"
}

func (s *Server) onlineUsers(ctx context.Context) string {
	names, err := s.sessionService.OnlineUsers(ctx)
	if err != nil {
		return errResponse(err)
	}
	return "OK: Online users: " + strings.Join(names, ", ")
}

func (s *Server) allUsers(ctx context.Context) string {
	users, err := s.sessionService.AllUsers(ctx)
	if err != nil {
		return errResponse(err)
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return "OK: Users: " + strings.Join(names, ", ")
}

// authenticate resolves a session token. Returns (nil, error response) on
// failure.
func (s *Server) authenticate(ctx context.Context, token string) (*models.User, string) {
	user, err := s.authService.ValidateSession(ctx, token)
	if err != nil {
		return nil, respInvalidSession
	}
	return user, ""
}

func (s *Server) withUser(ctx context.Context, token string, fn func(*models.User) string) string {
	user, resp := s.authenticate(ctx, token)
	if user == nil {
		return resp
	}
	return fn(user)
}

func (s *Server) withGroup(ctx context.Context, token, groupIDArg string, fn func(*models.User, uuid.UUID) string) string {
	user, resp := s.authenticate(ctx, token)
	if user == nil {
		return resp
	}
	groupID, err := uuid.Parse(groupIDArg)
	if err != nil {
		return "ERR: Invalid group id"
	}
	return fn(user, groupID)
}

func (s *Server) withInvite(ctx context.Context, token, inviteIDArg string, fn func(*models.User, uuid.UUID) string) string {
	user, resp := s.authenticate(ctx, token)
	if user == nil {
		return resp
	}
	inviteID, err := uuid.Parse(inviteIDArg)
	if err != nil {
		return "ERR: Invalid invite id"
	}
	return fn(user, inviteID)
}

func formatHistory(history []service.DecryptedMessage) string {
	if len(history) == 0 {
		return "OK: Messages:"
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.SentAt.Format("2006-01-02 15:04:05"), m.SenderName, m.Text))
	}
	return "OK: Messages:\n" + strings.Join(lines, "\n")
}

// errResponse maps domain errors to the wire format without leaking
// internals.
func errResponse(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrMessageTooLong):
		return "ERR: Message too long"
	case errors.Is(err, domainErrors.ErrNotGroupMember):
		return "ERR: Not a member of this group"
	case errors.Is(err, domainErrors.ErrAlreadyMember):
		return "ERR: Already a member of this group"
	case errors.Is(err, domainErrors.ErrGroupNotFound):
		return "ERR: Group not found"
	case errors.Is(err, domainErrors.ErrUserNotFound):
		return "ERR: User not found"
	case errors.Is(err, domainErrors.ErrAlreadyFriends):
		return "ERR: Already friends"
	case errors.Is(err, domainErrors.ErrDuplicateFriendRequest):
		return "ERR: Friend request already sent"
	case errors.Is(err, domainErrors.ErrFriendRequestNotFound):
		return "ERR: Friend request not found"
	case errors.Is(err, domainErrors.ErrInviteNotFound):
		return "ERR: Invite not found"
	case errors.Is(err, domainErrors.ErrAlreadyInvited):
		return "ERR: User already invited"
	case errors.Is(err, domainErrors.ErrInvalidRequest):
		return "ERR: Invalid request"
	case domainErrors.IsUnauthorized(err):
		return respInvalidSession
	case errors.Is(err, context.DeadlineExceeded):
		return "ERR: Operation timed out"
	default:
		return "ERR: Internal server error"
	}
}
