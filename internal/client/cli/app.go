// Package cli はaccountctlの対話型ターミナルUIを提供する。
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/accountd/internal/client/session"
)

// App はセッション状態機械を操作するREPL。
type App struct {
	machine *session.Machine
	reader  *bufio.Reader
	out     io.Writer
	fd      int // パスワード入力に使う端末のファイルディスクリプタ
}

// NewApp はAppを生成する。
func NewApp(machine *session.Machine, in io.Reader, out io.Writer, fd int) *App {
	return &App{
		machine: machine,
		reader:  bufio.NewReader(in),
		out:     out,
		fd:      fd,
	}
}

// Run はexitが入力されるか入力が終わるまでコマンドを処理する。
func (a *App) Run(ctx context.Context) error {
	a.printState()
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprintf(a.out, "accountctl [%s]> ", a.status())
		line, err := a.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if quit := a.dispatch(ctx, fields[0]); quit {
			fmt.Fprintln(a.out, "Bye!")
			return nil
		}
	}
}

// dispatch はコマンドを1つ実行する。終了する場合はtrueを返す。
func (a *App) dispatch(ctx context.Context, cmd string) bool {
	var err error

	switch cmd {
	case "help":
		a.printHelp()
		return false
	case "exit", "quit":
		return true
	case "login":
		err = a.login(ctx)
	case "signup":
		if err = a.machine.ClickSignup(); err == nil {
			err = a.signup(ctx)
		}
	case "forgot":
		if err = a.machine.ClickForgotPassword(); err == nil {
			err = a.requestReset(ctx)
		}
	case "reset":
		err = a.confirmReset(ctx)
	case "submit":
		err = a.submitCurrent(ctx)
	case "back":
		err = a.machine.ClickBackToLogin()
	case "whoami":
		err = a.whoami()
	case "logout":
		err = a.machine.Logout()
	default:
		fmt.Fprintf(a.out, "Unknown command: %s (type 'help')\n", cmd)
		return false
	}

	a.report(err)
	return false
}

// submitCurrent は現在のビューのフォームを入力して送信する。
func (a *App) submitCurrent(ctx context.Context) error {
	anon, ok := a.machine.State().(session.Anonymous)
	if !ok {
		return fmt.Errorf("%w: nothing to submit while logged in", session.ErrInvalidTransition)
	}

	switch anon.View {
	case session.ViewLogin:
		return a.login(ctx)
	case session.ViewSignup:
		return a.signup(ctx)
	case session.ViewResetRequest:
		return a.requestReset(ctx)
	default:
		return a.confirmReset(ctx)
	}
}

func (a *App) login(ctx context.Context) error {
	email, err := promptLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out, a.fd, "Password")
	if err != nil {
		return err
	}
	return a.machine.SubmitLogin(ctx, email, password)
}

func (a *App) signup(ctx context.Context) error {
	var form session.SignupForm
	fields := []struct {
		prompt string
		dst    *string
		secret bool
	}{
		{"Username", &form.Username, false},
		{"Email", &form.Email, false},
		{"Password", &form.Password, true},
		{"Confirm password", &form.ConfirmPassword, true},
		{"Profile picture URL (optional)", &form.ProfilePictureURL, false},
		{"Team ID (optional)", &form.TeamID, false},
	}

	for _, f := range fields {
		var (
			value string
			err   error
		)
		if f.secret {
			value, err = promptPassword(a.out, a.fd, f.prompt)
		} else {
			value, err = promptLine(a.reader, a.out, f.prompt)
		}
		if err != nil {
			return err
		}
		*f.dst = value
	}

	return a.machine.SubmitSignup(ctx, form)
}

// requestReset はリセットを要求し、成功した場合は続けて新しいパスワードを入力させる。
func (a *App) requestReset(ctx context.Context) error {
	email, err := promptLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}
	if err := a.machine.SubmitResetRequest(ctx, email); err != nil {
		return err
	}
	a.printState()
	return a.confirmReset(ctx)
}

func (a *App) confirmReset(ctx context.Context) error {
	anon, ok := a.machine.State().(session.Anonymous)
	if !ok || anon.View != session.ViewResetConfirm {
		return fmt.Errorf("%w: no password reset in progress", session.ErrInvalidTransition)
	}

	var form session.ResetConfirmForm
	if anon.ResetToken == "" {
		token, err := promptLine(a.reader, a.out, "Reset token")
		if err != nil {
			return err
		}
		form.Token = token
	}

	var err error
	if form.NewPassword, err = promptPassword(a.out, a.fd, "New password"); err != nil {
		return err
	}
	if form.ConfirmPassword, err = promptPassword(a.out, a.fd, "Confirm new password"); err != nil {
		return err
	}
	return a.machine.SubmitResetConfirm(ctx, form)
}

func (a *App) whoami() error {
	auth, ok := a.machine.State().(session.Authenticated)
	if !ok {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	u := auth.User
	fmt.Fprintf(a.out, "User ID:   %d\n", u.UserID)
	fmt.Fprintf(a.out, "Username:  %s\n", u.Username)
	fmt.Fprintf(a.out, "Email:     %s\n", u.Email)
	if u.TeamID != nil {
		fmt.Fprintf(a.out, "Team ID:   %d\n", *u.TeamID)
	}
	if u.ProfilePictureURL != "" {
		fmt.Fprintf(a.out, "Picture:   %s\n", u.ProfilePictureURL)
	}
	return nil
}

// report はコマンドの結果を表示する。
// 状態機械が設定したメッセージを優先し、状態遷移の誤りはエラーとして表示する。
func (a *App) report(err error) {
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	case err != nil && !a.hasMessage():
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.printState()
}

func (a *App) hasMessage() bool {
	anon, ok := a.machine.State().(session.Anonymous)
	return ok && anon.Message != ""
}

func (a *App) printState() {
	switch st := a.machine.State().(type) {
	case session.Authenticated:
		fmt.Fprintf(a.out, "Logged in as %s <%s>\n", st.User.Username, st.User.Email)
	case session.Anonymous:
		if st.Message != "" {
			fmt.Fprintln(a.out, st.Message)
		}
		if st.View == session.ViewResetConfirm && st.ResetToken != "" {
			fmt.Fprintln(a.out, "A reset token was issued for this session.")
		}
	}
}

func (a *App) status() string {
	switch st := a.machine.State().(type) {
	case session.Authenticated:
		return st.User.Username
	case session.Anonymous:
		return st.View.String()
	default:
		return "?"
	}
}

func (a *App) printHelp() {
	switch st := a.machine.State().(type) {
	case session.Authenticated:
		fmt.Fprintln(a.out, "Available commands: whoami, logout, exit")
	case session.Anonymous:
		switch st.View {
		case session.ViewLogin:
			fmt.Fprintln(a.out, "Available commands: login, signup, forgot, exit")
		case session.ViewResetConfirm:
			fmt.Fprintln(a.out, "Available commands: reset, back, exit")
		default:
			fmt.Fprintln(a.out, "Available commands: submit, back, exit")
		}
	}
}
