// Package domain defines the persistence models for the storefront: users,
// categories, the pattern catalog, the purchase ledger, and chat transcripts.
// These types are mapped with GORM and shared by the repository and service
// layers.
package domain

import (
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a storefront account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             int64      `json:"id"            gorm:"primaryKey;autoIncrement"`
	Email          string     `json:"email"         gorm:"size:320;not null;uniqueIndex:ux_users_email"`
	PasswordHash   string     `json:"-"             gorm:"size:100;not null"`
	Name           string     `json:"name"          gorm:"size:255"`
	Role           Role       `json:"role"          gorm:"size:16;not null;default:'user';check:role IN ('user','admin')"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastSignedInAt *time.Time `json:"last_signed_in_at,omitempty"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Category groups patterns for browsing.
type Category struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"        gorm:"size:100;not null"`
	Slug        string    `json:"slug"        gorm:"size:100;not null;uniqueIndex:ux_categories_slug"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Difficulty is the skill level a pattern targets.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Pattern is a purchasable digital quilt pattern.
//
// Price is in the smallest currency unit (cents). Patterns are never
// physically deleted in normal operation; deactivation flips Active so
// existing purchases keep resolving to their pattern.
//
// PDFURL and PDFFileKey locate the paid deliverable and must only be exposed
// to entitled users or admins.
type Pattern struct {
	ID           int64      `json:"id"                      gorm:"primaryKey;autoIncrement"`
	Title        string     `json:"title"                   gorm:"size:255;not null"`
	Slug         string     `json:"slug"                    gorm:"size:255;not null;uniqueIndex:ux_patterns_slug"`
	Description  string     `json:"description"             gorm:"type:text;not null"`
	Price        int64      `json:"price"                   gorm:"not null;check:price >= 0"`
	Difficulty   Difficulty `json:"difficulty"              gorm:"size:16;not null;check:difficulty IN ('beginner','intermediate','advanced')"`
	ImageURL     string     `json:"image_url"               gorm:"type:text"`
	PDFURL       string     `json:"pdf_url,omitempty"       gorm:"type:text"`
	PDFFileKey   string     `json:"pdf_file_key,omitempty"  gorm:"type:text"`
	FinishedSize *string    `json:"finished_size,omitempty" gorm:"size:100"`
	CategoryID   *int64     `json:"category_id,omitempty"   gorm:"index"`
	Featured     bool       `json:"featured"                gorm:"not null;default:false;index:idx_patterns_listing,priority:2"`
	Active       bool       `json:"active"                  gorm:"not null;index:idx_patterns_listing,priority:1"`
	CreatedAt    time.Time  `json:"created_at"              gorm:"index:idx_patterns_listing,priority:3"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Pattern.
func (Pattern) TableName() string { return "patterns" }

// PurchaseStatus is the lifecycle state of a ledger row. The only legal
// transitions are pending→completed and pending→failed.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// PurchaseStatuses lists every ledger state.
var PurchaseStatuses = []PurchaseStatus{PurchasePending, PurchaseCompleted, PurchaseFailed}

// Terminal reports whether no further transition is allowed from s.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseFailed
}

// OpenPurchaseStatuses returns the states a row may still leave.
func OpenPurchaseStatuses() []PurchaseStatus {
	var open []PurchaseStatus
	for _, st := range PurchaseStatuses {
		if !st.Terminal() {
			open = append(open, st)
		}
	}
	return open
}

// Purchase is one row of the purchase ledger. StripeSessionID is the natural
// idempotency key: at most one row exists per processor checkout session.
//
// Amount is what the processor actually charged (after promotions), not the
// catalog list price.
type Purchase struct {
	ID                    int64          `json:"id"                                 gorm:"primaryKey;autoIncrement"`
	UserID                int64          `json:"user_id"                            gorm:"not null;index:idx_purchases_user_pattern,priority:1"`
	PatternID             int64          `json:"pattern_id"                         gorm:"not null;index:idx_purchases_user_pattern,priority:2"`
	StripeSessionID       string         `json:"stripe_session_id"                  gorm:"size:255;not null;uniqueIndex:ux_purchases_session"`
	StripePaymentIntentID *string        `json:"stripe_payment_intent_id,omitempty" gorm:"size:255"`
	Amount                int64          `json:"amount"                             gorm:"not null"`
	Status                PurchaseStatus `json:"status"                             gorm:"size:16;not null;default:'pending';check:status IN ('pending','completed','failed')"`
	PurchasedAt           time.Time      `json:"purchased_at"                       gorm:"not null;index"`
	UpdatedAt             time.Time      `json:"updated_at"`

	User    *User    `json:"-"                 gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Pattern *Pattern `json:"pattern,omitempty" gorm:"foreignKey:PatternID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }
