package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/backend"
	"github.com/ytakahashi/firetodo/internal/config"
	"github.com/ytakahashi/firetodo/internal/localstore"
	"github.com/ytakahashi/firetodo/internal/logging"
	"github.com/ytakahashi/firetodo/internal/models"
	"github.com/ytakahashi/firetodo/internal/session"
	"github.com/ytakahashi/firetodo/internal/todo"
	"golang.org/x/term"
)

const TodoCtlVersion = "0.1.0"

const usage = `Todo control.

Usage:
    todoctl register <email> <name> [--password=<password>]
    todoctl login <email> [--password=<password>]
    todoctl logout
    todoctl whoami
    todoctl add <text> <deadline>
    todoctl list [--page=<n>]
    todoctl edit <id> <text>
    todoctl toggle <id>
    todoctl rm <id>
    todoctl clear
    todoctl stats
    todoctl watch

Options:
    -h --help               Show this screen.
    --version               Show version.
    --password=<password>   Account password. Prompted for when omitted.
    --page=<n>              Page to show [default: 1].

Deadlines are dates formatted YYYY-MM-DD.`

var errNotSignedIn = errors.New("not signed in, run todoctl login first")

type app struct {
	sessions *session.Manager
	todos    *todo.Manager
	backend  *backend.Backend
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], TodoCtlVersion)
	if err != nil {
		panic(err)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts) error {
	c := config.Load()
	logging.Setup(c.GetLogLevel(), true, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.backend.Close()

	return a.dispatch(ctx, opts)
}

func newApp(ctx context.Context, c config.EnvVars) (*app, error) {
	secret, err := c.GetJWTSecret()
	if err != nil {
		return nil, err
	}
	local, err := localstore.NewFile(filepath.Join(c.GetDataDir(), "session.json"))
	if err != nil {
		return nil, err
	}

	b, err := backend.Open(ctx, c)
	if err != nil {
		return nil, err
	}
	if b.Name == config.BackendMemory {
		log.Warn().Msg("In-memory backend: accounts and todos do not outlive this command")
	}

	provider := auth.NewPasswordProvider(b.Accounts, auth.NewTokenIssuer(secret, c.GetTokenTTL()), local)
	return &app{
		sessions: session.NewManager(provider, b.Store, session.NewLocalSessionStore(local)),
		todos:    todo.NewManager(b.Store),
		backend:  b,
	}, nil
}

func (a *app) dispatch(ctx context.Context, opts docopt.Opts) error {
	cmd := func(name string) bool {
		v, _ := opts.Bool(name)
		return v
	}

	switch {
	case cmd("register"):
		return a.register(ctx, opts)
	case cmd("login"):
		return a.login(ctx, opts)
	case cmd("logout"):
		return a.sessions.Logout(ctx)
	case cmd("whoami"):
		return a.whoami(ctx)
	case cmd("add"):
		return a.add(ctx, opts)
	case cmd("list"):
		return a.list(ctx, opts)
	case cmd("edit"):
		return a.edit(ctx, opts)
	case cmd("toggle"):
		return a.toggle(ctx, opts)
	case cmd("rm"):
		return a.remove(ctx, opts)
	case cmd("clear"):
		return a.clear(ctx)
	case cmd("stats"):
		return a.stats(ctx)
	case cmd("watch"):
		return a.watch(ctx)
	}
	return nil
}

func password(opts docopt.Opts) (string, error) {
	if p, err := opts.String("--password"); err == nil && p != "" {
		return p, nil
	}
	fmt.Print("Enter password: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *app) register(ctx context.Context, opts docopt.Opts) error {
	email, _ := opts.String("<email>")
	name, _ := opts.String("<name>")
	pw, err := password(opts)
	if err != nil {
		return err
	}

	user, err := a.sessions.Register(ctx, email, pw, name)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s <%s> (%s)\n", user.DisplayName, user.Email, user.UID)
	return nil
}

func (a *app) login(ctx context.Context, opts docopt.Opts) error {
	email, _ := opts.String("<email>")
	pw, err := password(opts)
	if err != nil {
		return err
	}

	user, err := a.sessions.Login(ctx, email, pw)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s>\n", user.DisplayName, user.Email)
	return nil
}

// whoami prints the cached session at once, then the authoritative one.
func (a *app) whoami(ctx context.Context) error {
	if cached := a.sessions.LoadAuthState(); cached != nil {
		fmt.Printf("cached:  %s <%s>\n", cached.DisplayName, cached.Email)
	}

	user, err := a.sessions.CheckAuthState(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Println("current: not signed in")
		return nil
	}
	fmt.Printf("current: %s <%s> (%s), member since %s\n", user.DisplayName, user.Email, user.UID, user.Profile.CreatedAt)
	return nil
}

func (a *app) currentUser(ctx context.Context) (*models.SessionUser, error) {
	user, err := a.sessions.CheckAuthState(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNotSignedIn
	}
	return user, nil
}

func (a *app) add(ctx context.Context, opts docopt.Opts) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	text, _ := opts.String("<text>")
	deadline, _ := opts.String("<deadline>")
	if _, err := time.Parse(models.DeadlineLayout, deadline); err != nil && !models.Blank(deadline) {
		return fmt.Errorf("deadline %q is not a YYYY-MM-DD date", deadline)
	}

	id, err := a.todos.AddTodo(ctx, user.UID, text, deadline)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("text and deadline are required")
	}
	fmt.Println(id)
	return nil
}

func (a *app) list(ctx context.Context, opts docopt.Opts) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	raw, _ := opts.String("--page")
	number, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("page %q is not a number", raw)
	}

	all, err := a.todos.List(ctx, user.UID)
	if err != nil {
		return err
	}
	page := todo.Paginate(all, number)
	printTodos(page.Items, time.Now())
	fmt.Printf("page %d of %d\n", page.Number, page.TotalPages)
	return nil
}

func (a *app) edit(ctx context.Context, opts docopt.Opts) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")
	text, _ := opts.String("<text>")

	ok, err := a.todos.UpdateTodoText(ctx, user.UID, id, text)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("text is required")
	}
	return nil
}

func (a *app) toggle(ctx context.Context, opts docopt.Opts) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")

	completed, err := a.todos.FlipCompleted(ctx, user.UID, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s completed=%t\n", id, completed)
	return nil
}

func (a *app) remove(ctx context.Context, opts docopt.Opts) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")
	return a.todos.DeleteTodo(ctx, user.UID, id)
}

func (a *app) clear(ctx context.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	n, err := a.todos.DeleteAll(ctx, user.UID)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d todos\n", n)
	return nil
}

func (a *app) stats(ctx context.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	all, err := a.todos.List(ctx, user.UID)
	if err != nil {
		return err
	}
	printStats(todo.ComputeStats(all, time.Now()))
	return nil
}

// watch prints the list after every change until interrupted.
func (a *app) watch(ctx context.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	coll := todo.NewCollection(a.backend.Store)
	err = coll.Open(ctx, user.UID, func(items []todo.Todo) {
		fmt.Printf("\n-- %s --\n", time.Now().Format(time.Kitchen))
		now := time.Now()
		printTodos(items, now)
		printStats(todo.ComputeStats(items, now))
	})
	if err != nil {
		return err
	}
	defer coll.Close()

	<-ctx.Done()
	return nil
}

func printTodos(items []todo.Todo, now time.Time) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tDEADLINE\tTEXT")
	for _, t := range items {
		done := " "
		if t.Completed {
			done = "x"
		}
		deadline := t.Deadline
		if todo.IsUrgent(t, now) {
			deadline += " !"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\n", t.ID, done, deadline, t.Text)
	}
	w.Flush()
}

func printStats(s todo.Stats) {
	fmt.Printf("total %d  completed %d  incomplete %d  urgent %d  non-urgent %d\n",
		s.Total, s.Completed, s.Incomplete, s.Urgent, s.NonUrgent)
}
