package http

import (
	"encoding/json"
	"net/http"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// API serves the REST surface of the quiz and attempt use cases.
type API struct {
	quizzes  *app.QuizService
	attempts *app.AttemptService
	users    UserContext
	validate *validator.Validate
}

func NewAPI(quizzes *app.QuizService, attempts *app.AttemptService, users UserContext) *API {
	return &API{quizzes: quizzes, attempts: attempts, users: users, validate: validator.New()}
}

type createQuizRequest struct {
	Title            string                  `json:"title" validate:"required"`
	Description      string                  `json:"description"`
	TimeLimitSeconds int                     `json:"timeLimitSeconds" validate:"required,gt=0"`
	ScoringType      string                  `json:"scoringType" validate:"omitempty,oneof=simple time_based streak_based"`
	Questions        []createQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

type createQuestionRequest struct {
	Text    string          `json:"text" validate:"required"`
	Points  int             `json:"points" validate:"gte=0"`
	Options []optionRequest `json:"options" validate:"required,min=1,dive"`
}

type optionRequest struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}

type answerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
}

// NewRouter mounts the REST API, the websocket endpoint and the health check.
func NewRouter(api *API, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api/v1/quizzes", func(r chi.Router) {
		r.Post("/", api.CreateQuiz)
		r.Route("/{quizID}", func(r chi.Router) {
			r.Get("/", api.GetQuiz)
			r.Post("/attempts", api.StartAttempt)
			r.Get("/attempts/current", api.CurrentAttempt)
			r.Post("/attempts/current/complete", api.CompleteAttempt)
			r.Post("/attempts/current/abandon", api.AbandonAttempt)
			r.Post("/answers", api.SubmitAnswer)
		})
	})
	return r
}

func (a *API) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !a.bind(w, r, &req) {
		return
	}

	in := app.NewQuizInput{
		Title:       req.Title,
		Description: req.Description,
		TimeLimit:   time.Duration(req.TimeLimitSeconds) * time.Second,
		ScoringType: domain.ScoringType(req.ScoringType),
	}
	for _, q := range req.Questions {
		options := make([]domain.Option, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, domain.Option{Text: o.Text, Correct: o.Correct})
		}
		in.Questions = append(in.Questions, app.NewQuestionInput{Text: q.Text, Points: q.Points, Options: options})
	}

	quiz, err := a.quizzes.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := a.quizzes.Summary(r.Context(), quiz.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	summary, err := a.quizzes.Summary(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) StartAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.user(w, r)
	if !ok {
		return
	}
	attempt, err := a.attempts.StartAttempt(r.Context(), userID, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewAttemptView(attempt))
}

func (a *API) CurrentAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.user(w, r)
	if !ok {
		return
	}
	attempt, err := a.attempts.CurrentAttempt(r.Context(), userID, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewAttemptView(attempt))
}

func (a *API) CompleteAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.user(w, r)
	if !ok {
		return
	}
	attempt, err := a.attempts.Complete(r.Context(), userID, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewAttemptView(attempt))
}

func (a *API) AbandonAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.user(w, r)
	if !ok {
		return
	}
	attempt, err := a.attempts.Abandon(r.Context(), userID, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewAttemptView(attempt))
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.user(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !a.bind(w, r, &req) {
		return
	}
	result, err := a.attempts.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "quizID"), req.QuestionID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := a.users.UserID(r)
	if err != nil {
		writeError(w, errUnauthenticated)
		return "", false
	}
	return userID, true
}

func (a *API) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, domain.Invalid("invalid request body"))
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, err)
		return false
	}
	return true
}
