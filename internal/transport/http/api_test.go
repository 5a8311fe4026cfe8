package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func TestCreateAndGetQuiz(t *testing.T) {
	server := newTestServer(t)

	body := map[string]any{
		"title":            "Capitals",
		"timeLimitSeconds": 120,
		"scoringType":      "time_based",
		"questions": []map[string]any{
			{"text": "Capital of France?", "points": 3, "options": []map[string]any{{"text": "Paris", "correct": true}, {"text": "Nice"}}},
		},
	}
	var created map[string]any
	status := doJSON(t, server, http.MethodPost, "/api/v1/quizzes", body, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, created)
	}
	id, _ := created["id"].(string)
	if id == "" || created["totalPoints"] != float64(3) || created["scoringType"] != "time_based" {
		t.Fatalf("unexpected summary %+v", created)
	}

	var fetched map[string]any
	if status := doJSON(t, server, http.MethodGet, "/api/v1/quizzes/"+id, nil, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	questions := fetched["questions"].([]any)
	first := questions[0].(map[string]any)
	if _, leaked := first["correct"]; leaked {
		t.Fatalf("summary must not expose correctness: %+v", first)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	server := newTestServer(t)

	cases := map[string]map[string]any{
		"missing title": {"timeLimitSeconds": 60, "questions": []map[string]any{{"text": "q", "options": []map[string]any{{"text": "a", "correct": true}}}}},
		"no questions":  {"title": "t", "timeLimitSeconds": 60},
		"no correct":    {"title": "t", "timeLimitSeconds": 60, "questions": []map[string]any{{"text": "q", "options": []map[string]any{{"text": "a"}}}}},
		"bad scoring":   {"title": "t", "timeLimitSeconds": 60, "scoringType": "lottery", "questions": []map[string]any{{"text": "q", "options": []map[string]any{{"text": "a", "correct": true}}}}},
	}
	for name, body := range cases {
		var resp map[string]any
		if status := doJSON(t, server, http.MethodPost, "/api/v1/quizzes", body, &resp); status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%v)", name, status, resp)
		}
	}
}

func TestAttemptLifecycleOverREST(t *testing.T) {
	server := newTestServer(t)
	base := "/api/v1/quizzes/quiz-1"

	var attempt map[string]any
	if status := doJSON(t, server, http.MethodPost, base+"/attempts?userId=u1", nil, &attempt); status != http.StatusOK {
		t.Fatalf("start: expected 200, got %d (%v)", status, attempt)
	}
	if attempt["status"] != "in_progress" || attempt["totalQuestions"] != float64(2) {
		t.Fatalf("unexpected attempt %+v", attempt)
	}

	var result map[string]any
	status := doJSON(t, server, http.MethodPost, base+"/answers?userId=u1", map[string]any{"questionId": "q2", "answer": "blue"}, &result)
	if status != http.StatusOK || result["correct"] != true || result["pointsEarned"] != float64(5) {
		t.Fatalf("answer: got %d %+v", status, result)
	}
	status = doJSON(t, server, http.MethodPost, base+"/answers?userId=u1", map[string]any{"questionId": "q2", "answer": "red"}, &result)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for a second answer, got %d", status)
	}
	status = doJSON(t, server, http.MethodPost, base+"/answers?userId=u1", map[string]any{"questionId": "q9", "answer": "x"}, &result)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", status)
	}

	var current map[string]any
	doJSON(t, server, http.MethodGet, base+"/attempts/current?userId=u1", nil, &current)
	if current["totalPointsEarned"] != float64(5) || current["nextQuestionId"] != "q1" {
		t.Fatalf("unexpected current attempt %+v", current)
	}

	var done map[string]any
	if status := doJSON(t, server, http.MethodPost, base+"/attempts/current/complete?userId=u1", nil, &done); status != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", status)
	}
	if done["status"] != "completed" {
		t.Fatalf("unexpected completed attempt %+v", done)
	}
	if status := doJSON(t, server, http.MethodPost, base+"/attempts/current/abandon?userId=u1", nil, &done); status != http.StatusConflict {
		t.Fatalf("abandon after complete: expected 409, got %d", status)
	}
}

func TestRESTErrors(t *testing.T) {
	server := newTestServer(t)

	var resp map[string]any
	if status := doJSON(t, server, http.MethodGet, "/api/v1/quizzes/missing", nil, &resp); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := doJSON(t, server, http.MethodPost, "/api/v1/quizzes/quiz-1/attempts", nil, &resp); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", status)
	}
	if status := doJSON(t, server, http.MethodGet, "/api/v1/quizzes/quiz-1/attempts/current?userId=u9", nil, &resp); status != http.StatusNotFound {
		t.Fatalf("expected 404 without an attempt, got %d", status)
	}
	errBody := resp["error"].(map[string]any)
	if errBody["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected error body %+v", resp)
	}

	res, err := http.Get(server.URL + "/healthz")
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", err, res)
	}
	res.Body.Close()
}

func doJSON(t *testing.T, server *testServer, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil {
		_ = json.NewDecoder(res.Body).Decode(out)
	}
	return res.StatusCode
}
