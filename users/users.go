// Package users implements the user/permission layer's identity records:
// the /etc/passwd format stored inside the image, and password hashing.
//
// The original spec leaves the hash algorithm an open question; this
// implementation decides it as bcrypt (see DESIGN.md).
package users

import (
	"bytes"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/yiny1/simplefs/ferr"
	"golang.org/x/crypto/bcrypt"
)

// Record is one line of /etc/passwd. The on-disk content of /etc/passwd is
// exactly the CSV serialization of a []Record.
type Record struct {
	Uid          uint16 `csv:"uid"`
	Gid          uint16 `csv:"gid"`
	Username     string `csv:"username"`
	PasswordHash string `csv:"password_hash"`
}

// RootUID is the administrator's fixed id; root bypasses all permission
// checks.
const RootUID = 0

// DefaultRootUsername and DefaultRootPassword seed the account format()
// creates; the shell is expected to prompt for a password change.
const DefaultRootUsername = "root"
const DefaultRootPassword = "root"

// HashPassword produces the stored form of a plaintext password.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", ferr.Io.Wrap(err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches the stored hash.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// DefaultRecords returns the single root account format() seeds the image
// with.
func DefaultRecords() ([]Record, error) {
	hash, err := HashPassword(DefaultRootPassword)
	if err != nil {
		return nil, err
	}
	return []Record{{Uid: RootUID, Gid: RootUID, Username: DefaultRootUsername, PasswordHash: hash}}, nil
}

// Marshal serializes records to the CSV bytes stored as /etc/passwd's
// content.
func Marshal(records []Record) ([]byte, error) {
	csvText, err := gocsv.MarshalString(&records)
	if err != nil {
		return nil, ferr.Io.Wrap(err)
	}
	return []byte(csvText), nil
}

// Unmarshal parses /etc/passwd's content back into records.
func Unmarshal(raw []byte) ([]Record, error) {
	var records []Record
	if len(bytes.TrimSpace(raw)) == 0 {
		return records, nil
	}
	if err := gocsv.UnmarshalBytes(raw, &records); err != nil {
		return nil, ferr.ImageCorrupt.Wrap(err)
	}
	return records, nil
}

// Table is an in-memory view over the password records, with lookups by
// name and by uid.
type Table struct {
	records []Record
}

func NewTable(records []Record) *Table {
	return &Table{records: records}
}

func (t *Table) Records() []Record {
	return t.records
}

// ByUsername finds a record case-sensitively, matching how the directory
// layer treats names.
func (t *Table) ByUsername(username string) (Record, bool) {
	for _, r := range t.records {
		if r.Username == username {
			return r, true
		}
	}
	return Record{}, false
}

func (t *Table) ByUID(uid uint16) (Record, bool) {
	for _, r := range t.records {
		if r.Uid == uid {
			return r, true
		}
	}
	return Record{}, false
}

// Authenticate returns the matching record if username/password is valid.
func (t *Table) Authenticate(username, password string) (Record, error) {
	rec, ok := t.ByUsername(username)
	if !ok {
		return Record{}, ferr.NotAuthenticated.WithMessage("unknown user " + username)
	}
	if !CheckPassword(rec.PasswordHash, password) {
		return Record{}, ferr.NotAuthenticated.WithMessage("bad password")
	}
	return rec, nil
}

// Add appends a new account. Fails if the username is taken.
func (t *Table) Add(rec Record) error {
	if _, ok := t.ByUsername(rec.Username); ok {
		return ferr.AlreadyExists.WithMessage("user " + rec.Username)
	}
	t.records = append(t.records, rec)
	return nil
}

// SetPassword updates username's stored hash.
func (t *Table) SetPassword(username, newPlaintext string) error {
	hash, err := HashPassword(newPlaintext)
	if err != nil {
		return err
	}
	for i := range t.records {
		if t.records[i].Username == username {
			t.records[i].PasswordHash = hash
			return nil
		}
	}
	return ferr.NotFound.WithMessage("user " + strings.TrimSpace(username))
}
