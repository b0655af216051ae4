// ringside/policy/policy.go

// Package policy is the single authority on who may read, write, edit, and
// delete board content. Request handlers never duplicate these rules; they
// hand the policy a session snapshot plus the target and translate the
// returned decision into a response.
package policy

import (
	"fmt"
	"time"

	"ringside/config"
	"ringside/models"
)

// Outcome tags a policy decision.
type Outcome int

const (
	Allowed Outcome = iota
	AuthenticationRequired
	Forbidden
	Blocked
	VerificationExpiredOrMissing
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case AuthenticationRequired:
		return "authentication_required"
	case Forbidden:
		return "forbidden"
	case Blocked:
		return "blocked"
	case VerificationExpiredOrMissing:
		return "verification_expired_or_missing"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Decision is the result of a policy evaluation. Policy violations are data,
// not errors; only storage failures surface as Go errors from the engine.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func (d Decision) Allowed() bool { return d.Outcome == Allowed }

func allow() Decision { return Decision{Outcome: Allowed} }

func deny(o Outcome, reason string) Decision { return Decision{Outcome: o, Reason: reason} }

// BlockStore is the subset of storage the write policy needs: active block
// lookups under the shared expiry rule (expires_at IS NULL OR > now).
type BlockStore interface {
	ActiveIPBlock(ip string, now time.Time) (*models.BlockedIP, error)
	ActiveUserBlock(userID int64, now time.Time) (*models.BlockedUser, error)
}

// Engine evaluates access decisions. The clock is injectable so expiry
// windows can be tested without sleeping.
type Engine struct {
	Blocks BlockStore
	Now    func() time.Time
}

func NewEngine(blocks BlockStore) *Engine {
	return &Engine{Blocks: blocks, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// WriteIdentity is who a permitted write is recorded as.
type WriteIdentity struct {
	UserID    int64
	Nickname  string
	Anonymous bool
}

// CanWrite decides whether the caller may create content on a board, and as
// whom. Order: IP block, then board access class, then user block for
// authenticated non-anonymous writes.
func (e *Engine) CanWrite(board *models.Board, sess *models.Session, ip string) (Decision, WriteIdentity, error) {
	if board == nil {
		return deny(NotFound, "board not found"), WriteIdentity{}, nil
	}

	now := e.now()
	if block, err := e.Blocks.ActiveIPBlock(ip, now); err != nil {
		return Decision{}, WriteIdentity{}, fmt.Errorf("ip block lookup: %w", err)
	} else if block != nil {
		return deny(Blocked, block.Reason.String), WriteIdentity{}, nil
	}

	if board.Access == models.AccessAnonymous {
		// Anonymous boards accept anyone, and the writer is always the
		// literal anonymous identity even for logged-in callers.
		return allow(), WriteIdentity{UserID: 0, Nickname: models.AnonymousNickname, Anonymous: true}, nil
	}

	if !sess.LoggedIn() {
		return deny(AuthenticationRequired, "login required"), WriteIdentity{}, nil
	}

	switch board.Access {
	case models.AccessVIPYellow:
		if sess.VIPTier != config.VIPYellow {
			return deny(Forbidden, "yellow VIP membership required"), WriteIdentity{}, nil
		}
	case models.AccessVIPBlue:
		if sess.VIPTier != config.VIPBlue {
			return deny(Forbidden, "blue VIP membership required"), WriteIdentity{}, nil
		}
	}

	if block, err := e.Blocks.ActiveUserBlock(sess.UserID, now); err != nil {
		return Decision{}, WriteIdentity{}, fmt.Errorf("user block lookup: %w", err)
	} else if block != nil {
		return deny(Blocked, block.Reason.String), WriteIdentity{}, nil
	}

	return allow(), WriteIdentity{UserID: sess.UserID, Nickname: sess.Nickname}, nil
}

// Content is the policy's view of an editable/deletable item.
type Content struct {
	Kind        ContentKind
	ID          int64
	OwnerID     int64
	IsAnonymous bool

	// ParentOwnerID is the owning post's account for comments; the post
	// owner may delete any comment under their post.
	ParentOwnerID int64
}

// ContentKind distinguishes verification grants for posts and comments.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

// Key is the session-scoped verification key for a piece of content.
func (c Content) Key() string {
	return fmt.Sprintf("%s:%d", c.Kind, c.ID)
}

// CanModify decides whether the caller may edit or delete content.
// Admin sessions bypass every further check, anonymous content is gated by
// the verification flow, everything else by ownership.
func (e *Engine) CanModify(content Content, sess *models.Session) Decision {
	if sess != nil && sess.IsAdmin {
		return allow()
	}

	if content.IsAnonymous {
		return e.checkVerification(content, sess)
	}

	if !sess.LoggedIn() {
		return deny(AuthenticationRequired, "login required")
	}
	if content.OwnerID == sess.UserID {
		return allow()
	}
	return deny(Forbidden, "not the author")
}

// CanDeleteComment is CanModify plus the parent-post-owner rule: the account
// that owns the post may remove any comment attached to it.
func (e *Engine) CanDeleteComment(comment Content, sess *models.Session) Decision {
	if sess.LoggedIn() && !comment.IsAnonymous && comment.ParentOwnerID == sess.UserID {
		return allow()
	}
	return e.CanModify(comment, sess)
}

// --- Anonymous verification lifecycle ---

// VerifySecret checks a submitted plaintext against the stored bcrypt hash
// and, on success, grants the session a time-limited verification for the
// content. The comparison is constant-time by bcrypt's construction.
func (e *Engine) VerifySecret(content Content, storedHash string, submitted string, sess *models.Session) Decision {
	if sess == nil {
		return deny(VerificationExpiredOrMissing, "no session")
	}
	if storedHash == "" {
		return deny(Forbidden, "content has no access secret")
	}
	if !CheckSecret(storedHash, submitted) {
		return deny(Forbidden, "password mismatch")
	}
	sess.GrantVerification(content.Key(), e.now())
	return allow()
}

// checkVerification requires a live grant younger than the verification
// window. The grant is deliberately NOT consumed here; it is consumed by
// ConsumeVerification once the privileged action completes, so a second
// action inside the window does not force re-verification.
func (e *Engine) checkVerification(content Content, sess *models.Session) Decision {
	if sess == nil {
		return deny(VerificationExpiredOrMissing, "password verification required")
	}
	at, ok := sess.VerificationAt(content.Key())
	if !ok {
		return deny(VerificationExpiredOrMissing, "password verification required")
	}
	if e.now().Sub(at) > config.VerificationWindow {
		sess.ConsumeVerification(content.Key())
		return deny(VerificationExpiredOrMissing, "password verification expired")
	}
	return allow()
}

// ConsumeVerification clears the grant after a privileged action succeeds.
func (e *Engine) ConsumeVerification(content Content, sess *models.Session) {
	if sess != nil {
		sess.ConsumeVerification(content.Key())
	}
}
