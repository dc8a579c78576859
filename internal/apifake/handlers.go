package apifake

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/dignilife/faceauth-client/api"
)

// Login methods reported in the token response
const (
	LoginMethodFace          = "face"
	LoginMethodEmailPassword = "email_password"
)

type registerBody struct {
	Email           string  `json:"email" validate:"required,email"`
	FullName        string  `json:"full_name" validate:"required,max=255"`
	PhoneNumber     *string `json:"phone_number" validate:"omitempty,max=20"`
	Password        *string `json:"password" validate:"omitempty,min=8,max=100"`
	FaceImageBase64 string  `json:"face_image_base64" validate:"required"`
}

type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// LoginHandler tries the face first and falls back to email and password
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		var user *User
		method := LoginMethodFace
		if req.FaceImageBase64 != "" {
			user = s.matchFace(req)
		}

		if user == nil && req.Email != nil && req.Password != nil {
			candidate, err := s.users.GetByEmail(*req.Email)
			if err != nil || !candidate.HasPassword() {
				writeDetail(w, http.StatusUnauthorized, "Account uses face login only. Password not set.")
				return
			}
			if !candidate.CheckPassword(*req.Password) {
				writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
				return
			}
			user = candidate
			method = LoginMethodEmailPassword
		}

		if user == nil {
			writeDetail(w, http.StatusUnauthorized, "Login failed. Face not recognized or credentials invalid.")
			return
		}
		if !user.IsActive {
			writeDetail(w, http.StatusForbidden, "Account is inactive")
			return
		}

		s.users.RecordLogin(user.ID)
		s.writeTokens(w, user.ID, method)
	}
}

// matchFace finds the account for a face login. With an email the face must
// belong to that account.
func (s *Server) matchFace(req api.LoginRequest) *User {
	if req.Email != nil {
		user, err := s.users.GetByEmail(*req.Email)
		if err != nil || user.Face != req.FaceImageBase64 {
			return nil
		}
		return user
	}

	user, err := s.users.MatchFace(req.FaceImageBase64)
	if err != nil {
		return nil
	}
	return user
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}
		if err := s.validate.Struct(body); err != nil {
			writeValidationErrors(w, err)
			return
		}

		user := &User{
			Email:       body.Email,
			FullName:    body.FullName,
			PhoneNumber: body.PhoneNumber,
			Face:        body.FaceImageBase64,
			IsActive:    true,
			CreatedAt:   s.now(),
		}
		if body.Password != nil {
			hash, err := hashPassword(*body.Password)
			if err != nil {
				writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			user.PasswordHash = hash
		}

		if err := s.users.Insert(user); err != nil {
			if errors.Is(err, errUserExists) {
				writeDetail(w, http.StatusBadRequest, "Email already registered")
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusCreated, user.toAPI())
	}
}

// RefreshHandler rotates the refresh token
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		userID, err := s.tokens.Redeem(req.RefreshToken)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil || !user.IsActive {
			writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}

		s.writeTokens(w, user.ID, "")
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		user, err := s.users.GetByID(userID)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, user.toAPI())
	}
}

func (s *Server) writeTokens(w http.ResponseWriter, userID, method string) {
	access, refresh, err := s.tokens.Issue(userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue tokens")
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		LoginMethod:  method,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

// writeValidationErrors reports field errors as a list in detail
func writeValidationErrors(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	issues := make([]validationIssue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, validationIssue{
			Loc:  []string{"body", fe.Field()},
			Msg:  fe.Error(),
			Type: fe.Tag(),
		})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"detail": issues})
}
