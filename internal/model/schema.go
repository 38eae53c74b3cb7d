package model

import "github.com/unisergius/meetballs/internal/schema"

// Users stores the people who own todos.
var Users = schema.NewTable("users",
	schema.Integer("id").PrimaryKey().AutoIncrement(),
	schema.Text("name").NotNull(),
	schema.Integer("age").NotNull(),
	schema.Text("email").NotNull().Unique(),
	schema.Timestamp("created_at").NotNull().DefaultNow(),
)

// Todos belong to a user and are removed with it.
var Todos = schema.NewTable("todos",
	schema.Integer("id").PrimaryKey().AutoIncrement(),
	schema.Text("title").NotNull(),
	schema.Boolean("completed").NotNull().DefaultBool(false),
	schema.Integer("user_id").NotNull().References("users", "id").OnDelete(schema.ActionCascade),
	schema.Timestamp("created_at").NotNull().DefaultNow(),
).Index("todos_user_id_idx", false, "user_id")

// Schema is the declared structure of the application database. Migrations
// are generated from it and push applies it directly.
func Schema() schema.Snapshot {
	return schema.New(Users, Todos)
}
