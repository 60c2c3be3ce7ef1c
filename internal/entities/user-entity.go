package entities

import "rental-system/pkg/types"

// User и Client ведутся во внешнем справочнике, здесь они только читаются.
type User struct {
	ID       uint64  `json:"id" db:"id"`
	Fio      string  `json:"fio" db:"fio"`
	Email    *string `json:"email" db:"email"`
	IsActive bool    `json:"is_active" db:"is_active"`

	types.BaseEntity
}

type Client struct {
	ID       uint64  `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Email    *string `json:"email" db:"email"`
	Phone    *string `json:"phone" db:"phone"`
	IsActive bool    `json:"is_active" db:"is_active"`

	types.BaseEntity
}
