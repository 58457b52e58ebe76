package schema

// Built-in contracts for the warehouse's raw layer. These form the static
// schema table loaded at process start; they are not reloadable at runtime.

const emailPattern = `^[\w\.-]+@[\w\.-]+\.\w+$`

// Customers describes customer master records.
func Customers() Contract {
	return Contract{
		Name: "customers",
		Fields: []Field{
			{Name: "customer_id", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "first_name", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "last_name", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "email", Type: TypeString, Constraints: []Constraint{Pattern(emailPattern)}, Normalize: []Normalizer{Lowercase()}},
			{Name: "country", Type: TypeString, Constraints: []Constraint{MinLength(2)}},
			{Name: "created_at", Type: TypeTime, Nullable: true},
		},
	}
}

// Products describes product catalog records. Monetary fields are rounded to
// two decimal places on the way in.
func Products() Contract {
	return Contract{
		Name: "products",
		Fields: []Field{
			{Name: "product_id", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "product_name", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "category", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "price", Type: TypeNumber, Constraints: []Constraint{GreaterThan(0)}, Normalize: []Normalizer{Round(2)}},
			{Name: "cost", Type: TypeNumber, Constraints: []Constraint{AtLeast(0)}, Normalize: []Normalizer{Round(2)}},
		},
	}
}

// Orders describes order line records.
func Orders() Contract {
	return Contract{
		Name: "orders",
		Fields: []Field{
			{Name: "order_id", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "customer_id", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "product_id", Type: TypeString, Constraints: []Constraint{MinLength(1)}},
			{Name: "quantity", Type: TypeNumber, Constraints: []Constraint{GreaterThan(0)}},
			{Name: "order_date", Type: TypeTime, Nullable: true},
			{Name: "status", Type: TypeString, Constraints: []Constraint{OneOf("pending", "completed", "shipped", "cancelled")}},
		},
	}
}

// RegisterBuiltin installs the built-in contracts into r.
func RegisterBuiltin(r *Registry) {
	r.MustRegister(Customers())
	r.MustRegister(Products())
	r.MustRegister(Orders())
}
