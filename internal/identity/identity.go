// Package identity reports the security identity of the calling process as
// SIDs, account names and POSIX ids.
package identity

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Role selects one identity held by an access token.
type Role int

const (
	RoleUser Role = iota
	RoleOwner
	RolePrimaryGroup
)

// Roles lists the roles in fetch and report order.
var Roles = []Role{RoleUser, RoleOwner, RolePrimaryGroup}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleOwner:
		return "Owner"
	case RolePrimaryGroup:
		return "Group"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Qualifier names the POSIX id kind of the role.
func (r Role) Qualifier() string {
	if r == RolePrimaryGroup {
		return "gid"
	}
	return "uid"
}

// SID is an opaque security identifier.
type SID interface {
	// Text returns the canonical "S-1-..." form.
	Text() (string, error)
}

// Info is a token information block. Its SID stays valid until Release.
type Info interface {
	SID() SID
	Release()
}

// Token is an access token the resolver reads from.
type Token interface {
	Info(role Role) (Info, error)
	Close() error
}

// Directory resolves SIDs to names and POSIX ids and back.
type Directory interface {
	// LookupAccount returns the account and domain names of sid. An
	// unknown SID is an error the resolver tolerates.
	LookupAccount(sid SID) (account, domain string, err error)

	PosixID(sid SID) (uint32, error)
	SIDForPosixID(id uint32) (SID, error)
	ParseSID(text string) (SID, error)
}

// Row is one formatted identity line.
type Row struct {
	Role Role
	SID  string
	Name string
	ID   uint32
}

func (r Row) String() string {
	return fmt.Sprintf("%s=%s(%s) (%s=%d)", r.Role, r.SID, r.Name, r.Role.Qualifier(), r.ID)
}

// AccountName joins domain and account as DOMAIN\Name, dropping the domain
// part when it is empty.
func AccountName(account, domain string) string {
	if domain == "" {
		return account
	}
	return domain + `\` + account
}

type Resolver struct {
	tok Token
	dir Directory
	log zerolog.Logger
}

// NewResolver returns a resolver over tok and dir. tok may be nil when only
// the SID/id conversions are used.
func NewResolver(tok Token, dir Directory, log zerolog.Logger) *Resolver {
	return &Resolver{tok: tok, dir: dir, log: log}
}

// Report writes the user, owner and primary group lines. All three token
// information blocks are fetched, in that order, before anything is
// written, and stay alive until the last line is formatted.
func (r *Resolver) Report(w io.Writer) error {
	infos := make([]Info, 0, len(Roles))
	defer func() {
		for _, info := range infos {
			info.Release()
		}
	}()

	for _, role := range Roles {
		info, err := r.tok.Info(role)
		if err != nil {
			return fmt.Errorf("query token %s: %w", role, err)
		}
		infos = append(infos, info)
	}

	for i, role := range Roles {
		row, err := r.Row(role, infos[i].SID())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, row); err != nil {
			return err
		}
	}

	return nil
}

// Row resolves one role. Failing to convert the SID to text or to map it to
// a POSIX id is an error; an unresolvable account name is not.
func (r *Resolver) Row(role Role, sid SID) (Row, error) {
	text, name, err := r.describe(sid)
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", role, err)
	}

	id, err := r.dir.PosixID(sid)
	if err != nil {
		return Row{}, fmt.Errorf("%s: map %s to posix id: %w", role, text, err)
	}

	return Row{Role: role, SID: text, Name: name, ID: id}, nil
}

// SIDToID parses text, maps it to a POSIX id and writes
// "<SID>(<Name>) (uid=<id>)".
func (r *Resolver) SIDToID(w io.Writer, text string) error {
	sid, err := r.dir.ParseSID(text)
	if err != nil {
		return fmt.Errorf("parse sid %q: %w", text, err)
	}

	canonical, name, err := r.describe(sid)
	if err != nil {
		return err
	}

	id, err := r.dir.PosixID(sid)
	if err != nil {
		return fmt.Errorf("map %s to posix id: %w", canonical, err)
	}

	_, err = fmt.Fprintf(w, "%s(%s) (uid=%d)\n", canonical, name, id)
	return err
}

// IDToSID maps a POSIX id to a SID and writes "<SID>(<Name>)".
func (r *Resolver) IDToSID(w io.Writer, id uint32) error {
	sid, err := r.dir.SIDForPosixID(id)
	if err != nil {
		return fmt.Errorf("map posix id %d to sid: %w", id, err)
	}

	text, name, err := r.describe(sid)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s(%s)\n", text, name)
	return err
}

func (r *Resolver) describe(sid SID) (text, name string, err error) {
	text, err = sid.Text()
	if err != nil {
		return "", "", fmt.Errorf("convert sid to string: %w", err)
	}

	account, domain, err := r.dir.LookupAccount(sid)
	if err != nil {
		r.log.Debug().Str("sid", text).Err(err).Msg("account lookup failed")
		return text, "", nil
	}

	return text, AccountName(account, domain), nil
}
