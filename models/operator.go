package models

// Operator is the drone pilot who owns the session.
type Operator struct {
	ID                string       `db:"id" json:"id"`
	Name              string       `db:"name" json:"name" validate:"required"`
	Phone             string       `db:"phone" json:"phone" validate:"required"`
	Email             string       `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Address           string       `db:"address" json:"address,omitempty"`
	LicenseNumber     string       `db:"license_number" json:"licenseNumber"`
	DroneModel        string       `db:"drone_model" json:"droneModel"`
	DroneRegistration string       `db:"drone_registration" json:"droneRegistration"`
	InsuranceExpiry   string       `db:"insurance_expiry" json:"insuranceExpiry" validate:"omitempty,datetime=2006-01-02"`
	HomeLocation      *Coordinates `db:"-" json:"homeLocation,omitempty"`
}

// Clone returns a deep copy.
func (o Operator) Clone() Operator {
	out := o
	if o.HomeLocation != nil {
		h := *o.HomeLocation
		out.HomeLocation = &h
	}
	return out
}

// OperatorPatch is a partial profile update. Nil fields are left unchanged.
// ID and Phone are not patchable.
type OperatorPatch struct {
	Name              *string      `json:"name,omitempty" validate:"omitempty,min=1"`
	Email             *string      `json:"email,omitempty" validate:"omitempty,email"`
	Address           *string      `json:"address,omitempty"`
	LicenseNumber     *string      `json:"licenseNumber,omitempty"`
	DroneModel        *string      `json:"droneModel,omitempty"`
	DroneRegistration *string      `json:"droneRegistration,omitempty"`
	InsuranceExpiry   *string      `json:"insuranceExpiry,omitempty" validate:"omitempty,datetime=2006-01-02"`
	HomeLocation      *Coordinates `json:"homeLocation,omitempty"`
}

// ApplyTo returns o with the non-nil fields of p overlaid.
func (p OperatorPatch) ApplyTo(o Operator) Operator {
	out := o.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.LicenseNumber != nil {
		out.LicenseNumber = *p.LicenseNumber
	}
	if p.DroneModel != nil {
		out.DroneModel = *p.DroneModel
	}
	if p.DroneRegistration != nil {
		out.DroneRegistration = *p.DroneRegistration
	}
	if p.InsuranceExpiry != nil {
		out.InsuranceExpiry = *p.InsuranceExpiry
	}
	if p.HomeLocation != nil {
		h := *p.HomeLocation
		out.HomeLocation = &h
	}
	return out
}
