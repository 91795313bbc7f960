package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleMerchant UserRole = "merchant"
	UserRoleDriver   UserRole = "driver"
	UserRoleCustomer UserRole = "customer"
)

type Principal struct {
	UserID   uuid.UUID
	Role     UserRole
	DriverID *uuid.UUID
}

func (p Principal) IsDriver() bool {
	return p.Role == UserRoleDriver
}
