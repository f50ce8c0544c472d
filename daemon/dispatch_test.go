package daemon_test

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/daemon"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/session"
	"github.com/yiny1/simplefs/users"
	"github.com/yiny1/simplefs/vfs"
)

func newDispatcher(t *testing.T) (*daemon.Dispatcher, *session.Session) {
	t.Helper()
	e, err := vfs.OpenDevice(image.NewMemDevice(), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	return daemon.NewDispatcher(e, logrus.NewEntry(logrus.New())), session.New()
}

func TestCommandsRequireLoginFirst(t *testing.T) {
	d, sess := newDispatcher(t)
	result := d.Handle(sess, "dir")
	assert.Contains(t, result.Text, "error")
}

func TestLoginThenBasicCommands(t *testing.T) {
	d, sess := newDispatcher(t)

	login := d.Handle(sess, "login "+users.DefaultRootUsername+" "+users.DefaultRootPassword)
	assert.Contains(t, login.Text, "welcome")

	md := d.Handle(sess, "md /docs")
	assert.Contains(t, md.Text, "created")

	newfile := d.Handle(sess, "newfile /docs/a.txt hello world")
	assert.Contains(t, newfile.Text, "created")

	cat := d.Handle(sess, "cat /docs/a.txt")
	assert.Equal(t, "hello world", cat.Text)

	dirResult := d.Handle(sess, "dir /docs")
	assert.True(t, strings.Contains(dirResult.Text, "a.txt"))

	del := d.Handle(sess, "del /docs/a.txt")
	assert.Contains(t, del.Text, "deleted")
}

func TestExitClosesConnection(t *testing.T) {
	d, sess := newDispatcher(t)
	result := d.Handle(sess, "exit")
	assert.True(t, result.Close)
}

func TestUsersCommandsAreRootOnly(t *testing.T) {
	d, sess := newDispatcher(t)
	d.Handle(sess, "login "+users.DefaultRootUsername+" "+users.DefaultRootPassword)

	added := d.Handle(sess, "users add alice 100 100 s3cret")
	assert.Contains(t, added.Text, "added user alice")

	listed := d.Handle(sess, "users")
	assert.Contains(t, listed.Text, "alice")

	changed := d.Handle(sess, "users passwd alice newpass")
	assert.Contains(t, changed.Text, "password updated")
}

func TestUsersCommandDeniedForNonRoot(t *testing.T) {
	d, sess := newDispatcher(t)
	d.Handle(sess, "login "+users.DefaultRootUsername+" "+users.DefaultRootPassword)
	d.Handle(sess, "users add bob 200 200 pw")
	d.Handle(sess, "logout")

	login := d.Handle(sess, "login bob pw")
	assert.Contains(t, login.Text, "welcome")

	result := d.Handle(sess, "users")
	assert.Contains(t, result.Text, "error")
}

func TestFormattingRequiresRootAndConfirmation(t *testing.T) {
	d, sess := newDispatcher(t)
	d.Handle(sess, "login "+users.DefaultRootUsername+" "+users.DefaultRootPassword)
	d.Handle(sess, "md /keep")

	prompt := d.Handle(sess, "formatting")
	assert.Contains(t, prompt.Text, "confirm")

	formatted := d.Handle(sess, "formatting confirm")
	assert.Contains(t, formatted.Text, "formatted")

	dirResult := d.Handle(sess, "dir /")
	assert.NotContains(t, dirResult.Text, "keep")
}

func TestRdPromptsBeforeRemovingNonEmptyDir(t *testing.T) {
	d, sess := newDispatcher(t)
	d.Handle(sess, "login "+users.DefaultRootUsername+" "+users.DefaultRootPassword)
	d.Handle(sess, "md /full")
	d.Handle(sess, "newfile /full/a.txt x")

	prompt := d.Handle(sess, "rd /full")
	assert.Contains(t, prompt.Text, "confirm")

	removed := d.Handle(sess, "rd /full confirm")
	assert.Contains(t, removed.Text, "removed")
}
