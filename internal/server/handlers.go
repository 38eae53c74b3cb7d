package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/store"
)

const maxBody = 1 << 20

type userRequest struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email"`
}

type todoRequest struct {
	Title  string `json:"title"`
	UserID int64  `json:"user_id"`
}

type completeRequest struct {
	Completed *bool `json:"completed"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	page, err := s.repo.ListUsers(r.Context(), store.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []model.User{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.User]{Items: items, Total: page.Total})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := s.repo.CreateUser(r.Context(), &model.User{Name: req.Name, Age: req.Age, Email: req.Email})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/users/%d", u.ID))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := s.repo.GetUser(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	u := &model.User{ID: id, Name: req.Name, Age: req.Age, Email: req.Email}
	if err := s.repo.UpdateUser(r.Context(), u); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.repo.GetUser(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteUser(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listTodos supports ?user_id= to filter by owner and ?expand=user to
// include the owner's name.
func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id must be a positive integer")
			return
		}
		userID = &id
	}

	if r.URL.Query().Get("expand") == "user" {
		todos, err := s.repo.ListTodosWithUsers(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		items := make([]model.TodoWithUser, 0, len(todos))
		for _, t := range todos {
			if userID == nil || t.UserID == *userID {
				items = append(items, t)
			}
		}
		writeJSON(w, http.StatusOK, listResponse[model.TodoWithUser]{Items: items, Total: len(items)})
		return
	}

	todos, err := s.repo.ListTodos(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.Todo]{Items: todos, Total: len(todos)})
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.repo.CreateTodo(r.Context(), &model.Todo{Title: req.Title, UserID: req.UserID})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/todos/%d", t.ID))
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.repo.GetTodo(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) completeTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Completed == nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "completed is required")
		return
	}
	if err := s.repo.SetTodoCompleted(r.Context(), id, *req.Completed); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	t, err := s.repo.GetTodo(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteTodo(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
