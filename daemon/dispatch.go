package daemon

import (
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/session"
	"github.com/yiny1/simplefs/users"
	"github.com/yiny1/simplefs/vfs"
)

// Dispatcher parses one command line at a time and drives the engine on
// behalf of whichever session sent it.
type Dispatcher struct {
	engine *vfs.Engine
	log    *logrus.Entry
}

func NewDispatcher(engine *vfs.Engine, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Dispatcher{engine: engine, log: log}
}

// Result is what a dispatched command produces: text to send back, and
// whether the connection should be closed afterward (the "exit" command).
type Result struct {
	Text  string
	Close bool
}

func textResult(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...)}
}

func errResult(err error) Result {
	if k, ok := ferr.Of(err); ok && k == ferr.ImageCorrupt {
		return Result{Text: "error: " + err.Error() + "; run check"}
	}
	return Result{Text: "error: " + err.Error()}
}

// Handle parses and executes a single command line against sess.
func (d *Dispatcher) Handle(sess *session.Session, line string) Result {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{}
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "exit", "quit":
		return Result{Text: "goodbye", Close: true}
	case "help":
		return textResult(helpText)
	case "login":
		return d.login(sess, args)
	case "logout":
		sess.Logout()
		return textResult("logged out")
	case "whoami":
		if !sess.IsAuthenticated() {
			return textResult("not logged in")
		}
		return textResult(sess.Username())
	}

	if !sess.IsAuthenticated() {
		return errResult(ferr.NotAuthenticated.WithMessage("login first"))
	}

	switch cmd {
	case "info":
		return d.info()
	case "dir":
		return d.dir(sess, args)
	case "cd":
		return d.cd(sess, args)
	case "md":
		return d.md(sess, args)
	case "rd":
		return d.rd(sess, args)
	case "newfile":
		return d.newfile(sess, args)
	case "cat":
		return d.cat(sess, args)
	case "copy":
		return d.copy(sess, args)
	case "del":
		return d.del(sess, args)
	case "check":
		return d.check(args)
	case "useradd":
		return d.useradd(sess, args)
	case "users":
		return d.users(sess, args)
	case "formatting":
		return d.formatting(sess, args)
	default:
		return textResult("unknown command %q; try \"help\"", cmd)
	}
}

const helpText = `commands: login <user> <pass>, logout, whoami,
info, dir [path] [/s], cd <path>, md <path>, rd <path> [confirm],
newfile <path> <text...>, cat <path>, copy <src> <dst>, del <path>,
check [repair], users [add <user> <uid> <gid> <pass> | passwd <user> <pass>],
formatting confirm, exit`

func (d *Dispatcher) login(sess *session.Session, args []string) Result {
	if len(args) != 2 {
		return textResult("usage: login <user> <pass>")
	}
	id, err := d.engine.Authenticate(args[0], args[1])
	if err != nil {
		return errResult(err)
	}
	sess.Login(args[0], id)
	return textResult("welcome, %s", args[0])
}

func (d *Dispatcher) info() Result {
	info := d.engine.Info()
	return textResult("inodes %d/%d used, blocks %d/%d used",
		info.UsedInodes, info.TotalInodes, info.UsedDataBlocks, info.TotalDataBlocks)
}

func (d *Dispatcher) dir(sess *session.Session, args []string) Result {
	target := "."
	recursive := false
	for _, a := range args {
		if a == "/s" {
			recursive = true
			continue
		}
		target = a
	}
	listings, err := d.engine.Dir(sess.Cwd(), target, sess.Identity(), recursive)
	if err != nil {
		return errResult(err)
	}
	var b strings.Builder
	for _, listing := range listings {
		fmt.Fprintf(&b, "%s:\n", listing.Path)
		for _, e := range listing.Entries {
			kind := "f"
			if e.IsDir {
				kind = "d"
			}
			fmt.Fprintf(&b, "  %s %6d %04o %s\n", kind, e.Size, e.Mode&0o777, e.Name)
		}
	}
	return Result{Text: b.String()}
}

func (d *Dispatcher) cd(sess *session.Session, args []string) Result {
	if len(args) != 1 {
		return textResult("usage: cd <path>")
	}
	newID, err := d.engine.Cd(sess.Cwd(), args[0], sess.Identity())
	if err != nil {
		return errResult(err)
	}
	sess.SetCwd(newID, resolveDisplay(sess.CwdDisplay(), args[0]))
	return textResult(sess.CwdDisplay())
}

// resolveDisplay keeps the session's printable cwd in sync with path.Join
// semantics, purely cosmetic: the engine is the source of truth for the
// actual inode id.
func resolveDisplay(cwd, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(target)
	}
	return path.Clean(cwd + "/" + target)
}

func (d *Dispatcher) md(sess *session.Session, args []string) Result {
	if len(args) != 1 {
		return textResult("usage: md <path>")
	}
	if err := d.engine.Md(sess.Cwd(), args[0], sess.Identity()); err != nil {
		return errResult(err)
	}
	return textResult("created %s", args[0])
}

func (d *Dispatcher) rd(sess *session.Session, args []string) Result {
	if len(args) == 0 {
		return textResult("usage: rd <path> [confirm]")
	}
	targetPath := args[0]
	confirmed := len(args) > 1 && strings.EqualFold(args[1], "confirm")

	if !confirmed {
		nonEmpty, err := d.engine.DirNonEmpty(sess.Cwd(), targetPath, sess.Identity())
		if err != nil {
			return errResult(err)
		}
		if nonEmpty {
			return textResult("%s is not empty; resend as \"rd %s confirm\" to remove it and everything in it", targetPath, targetPath)
		}
	}

	if err := d.engine.Rd(sess.Cwd(), targetPath, sess.Identity()); err != nil {
		return errResult(err)
	}
	return textResult("removed %s", targetPath)
}

func (d *Dispatcher) newfile(sess *session.Session, args []string) Result {
	if len(args) < 1 {
		return textResult("usage: newfile <path> [content...]")
	}
	content := strings.Join(args[1:], " ")
	if err := d.engine.NewFile(sess.Cwd(), args[0], sess.Identity(), []byte(content)); err != nil {
		return errResult(err)
	}
	return textResult("created %s", args[0])
}

func (d *Dispatcher) cat(sess *session.Session, args []string) Result {
	if len(args) != 1 {
		return textResult("usage: cat <path>")
	}
	data, err := d.engine.Cat(sess.Cwd(), args[0], sess.Identity())
	if err != nil {
		return errResult(err)
	}
	return Result{Text: string(data)}
}

func (d *Dispatcher) copy(sess *session.Session, args []string) Result {
	if len(args) != 2 {
		return textResult("usage: copy <src> <dst>")
	}
	if err := d.engine.Copy(sess.Cwd(), args[0], args[1], sess.Identity()); err != nil {
		return errResult(err)
	}
	return textResult("copied %s to %s", args[0], args[1])
}

func (d *Dispatcher) del(sess *session.Session, args []string) Result {
	if len(args) != 1 {
		return textResult("usage: del <path>")
	}
	if err := d.engine.Del(sess.Cwd(), args[0], sess.Identity()); err != nil {
		return errResult(err)
	}
	return textResult("deleted %s", args[0])
}

func (d *Dispatcher) check(args []string) Result {
	repair := len(args) > 0 && strings.EqualFold(args[0], "repair")
	report, err := d.engine.Check(repair)
	if err != nil && report == nil {
		return errResult(err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "visited %d inodes\n", report.InodesVisited)
	if err != nil {
		fmt.Fprintf(&b, "%s\n", err.Error())
	} else {
		fmt.Fprintf(&b, "clean\n")
	}
	return Result{Text: b.String()}
}

func (d *Dispatcher) useradd(sess *session.Session, args []string) Result {
	if !sess.Identity().IsRoot() {
		return errResult(ferr.PermissionDenied.WithMessage("administering accounts requires root"))
	}
	if len(args) != 4 {
		return textResult("usage: useradd <user> <uid> <gid> <pass>")
	}
	uid, err1 := parseUint16(args[1])
	gid, err2 := parseUint16(args[2])
	if err1 != nil || err2 != nil {
		return textResult("uid/gid must be numeric")
	}
	hash, err := users.HashPassword(args[3])
	if err != nil {
		return errResult(err)
	}
	if err := d.engine.AddUser(users.Record{Uid: uid, Gid: gid, Username: args[0], PasswordHash: hash}); err != nil {
		return errResult(err)
	}
	return textResult("added user %s", args[0])
}

// users is the root-only account administration verb: bare "users" lists
// every account's uid/gid/username (never the hash), "users add" creates
// one, and "users passwd" changes an existing account's password.
func (d *Dispatcher) users(sess *session.Session, args []string) Result {
	if !sess.Identity().IsRoot() {
		return errResult(ferr.PermissionDenied.WithMessage("administering accounts requires root"))
	}
	if len(args) == 0 {
		var b strings.Builder
		for _, rec := range d.engine.ListUsers() {
			fmt.Fprintf(&b, "%6d %6d %s\n", rec.Uid, rec.Gid, rec.Username)
		}
		return Result{Text: b.String()}
	}

	switch strings.ToLower(args[0]) {
	case "add":
		return d.useradd(sess, args[1:])
	case "passwd":
		if len(args) != 3 {
			return textResult("usage: users passwd <user> <pass>")
		}
		if err := d.engine.SetPassword(args[1], args[2]); err != nil {
			return errResult(err)
		}
		return textResult("password updated for %s", args[1])
	default:
		return textResult("usage: users [add <user> <uid> <gid> <pass> | passwd <user> <pass>]")
	}
}

// formatting wipes and reinitializes the whole image in place. It requires
// root and the same explicit "confirm" round trip rd uses for non-empty
// directories, since it destroys every file unconditionally.
func (d *Dispatcher) formatting(sess *session.Session, args []string) Result {
	if !sess.Identity().IsRoot() {
		return errResult(ferr.PermissionDenied.WithMessage("formatting requires root"))
	}
	if len(args) != 1 || !strings.EqualFold(args[0], "confirm") {
		return textResult("this destroys every file on the image; resend as \"formatting confirm\" to proceed")
	}
	if err := d.engine.Format(); err != nil {
		return errResult(err)
	}
	return textResult("formatted")
}

func parseUint16(s string) (uint16, error) {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ferr.InvalidPath
		}
		v = v*10 + uint64(r-'0')
		if v > 0xFFFF {
			return 0, ferr.InvalidPath
		}
	}
	return uint16(v), nil
}
