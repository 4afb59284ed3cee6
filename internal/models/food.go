package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MealType names the service a food log covers.
type MealType string

const (
	MealBreakfast MealType = "Breakfast"
	MealLunch     MealType = "Lunch"
	MealDinner    MealType = "Dinner"
	MealSnacks    MealType = "Snacks"
)

// SafetyStatus records whether cooked food was stored in time.
type SafetyStatus string

const (
	FoodSafe   SafetyStatus = "Safe"
	FoodUnsafe SafetyStatus = "Unsafe"
)

// Edibility is the kitchen's own assessment of the leftovers.
type Edibility string

const (
	Edible    Edibility = "Edible"
	NonEdible Edibility = "Non-Edible"
)

// FoodAction is what happened to the leftovers.
type FoodAction string

const (
	FoodPending   FoodAction = "Pending"
	FoodDonated   FoodAction = "Donated"
	FoodComposted FoodAction = "Composted"
	FoodDiscarded FoodAction = "Discarded"
)

// FoodItem is one dish on a food log, measured in kilograms by default.
type FoodItem struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Unit     string  `json:"unit,omitempty" validate:"max=16"`
}

// FoodItems is stored as a JSONB array.
type FoodItems []FoodItem

// Value implements driver.Valuer.
func (f FoodItems) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FoodItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = FoodItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("food items: unsupported column type")
	}
	return json.Unmarshal(raw, f)
}

// FoodLog is one meal service with its leftovers and safety assessment.
type FoodLog struct {
	ID           string       `db:"id" json:"id"`
	HostelID     string       `db:"hostel_id" json:"hostel_id"`
	HostelName   string       `db:"hostel_name" json:"hostel_name,omitempty"`
	Date         time.Time    `db:"date" json:"date"`
	MealType     MealType     `db:"meal_type" json:"meal_type"`
	Items        FoodItems    `db:"items" json:"items"`
	Prepared     float64      `db:"prepared" json:"prepared"`
	Served       float64      `db:"served" json:"served"`
	Leftover     float64      `db:"leftover" json:"leftover"`
	CookedAt     time.Time    `db:"cooked_at" json:"cooked_at"`
	StoredAt     time.Time    `db:"stored_at" json:"stored_at"`
	SafetyStatus SafetyStatus `db:"safety_status" json:"safety_status"`
	Edibility    Edibility    `db:"edibility" json:"edibility"`
	Action       FoodAction   `db:"action" json:"action"`
	LoggedBy     *string      `db:"logged_by" json:"logged_by,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Donatable reports whether the leftovers may be given away.
func (f FoodLog) Donatable() bool {
	return f.SafetyStatus == FoodSafe && f.Edibility == Edible
}

// CreateFoodLogRequest records a meal service. Date defaults to today.
type CreateFoodLogRequest struct {
	HostelID  string     `json:"hostel_id" validate:"required,uuid"`
	Date      string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	MealType  MealType   `json:"meal_type" validate:"required,oneof=Breakfast Lunch Dinner Snacks"`
	Items     []FoodItem `json:"items" validate:"max=50,dive"`
	Prepared  float64    `json:"prepared" validate:"gt=0"`
	Served    float64    `json:"served" validate:"gte=0"`
	CookedAt  time.Time  `json:"cooked_at" validate:"required"`
	StoredAt  time.Time  `json:"stored_at" validate:"required"`
	Edibility Edibility  `json:"edibility" validate:"required,oneof=Edible Non-Edible"`
}

// FoodActionRequest records what was done with the leftovers.
type FoodActionRequest struct {
	Action FoodAction `json:"action" validate:"required,oneof=Donated Composted Discarded"`
}
