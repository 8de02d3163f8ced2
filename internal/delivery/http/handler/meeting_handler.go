package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"apply-codes/internal/pkg/response"
	"apply-codes/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type MeetingHandler struct {
	uc usecase.MeetingUsecase
}

func NewMeetingHandler(uc usecase.MeetingUsecase) *MeetingHandler {
	return &MeetingHandler{uc: uc}
}

var errBadExpiry = errors.New("expiresAt must be unix seconds or an RFC 3339 time")

// expiry accepts unix seconds, as Daily does, or an RFC 3339 string.
type expiry struct{ time.Time }

func (e *expiry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return errBadExpiry
		}
		e.Time = t
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return errBadExpiry
	}
	if secs > 0 {
		e.Time = time.Unix(secs, 0).UTC()
	}
	return nil
}

type createRoomRequest struct {
	RoomName        string `json:"roomName"`
	Privacy         string `json:"privacy"`
	EnableRecording bool   `json:"enableRecording"`
	EnableChat      *bool  `json:"enableChat"`
	MaxParticipants int    `json:"maxParticipants"`
	ExpiresAt       expiry `json:"expiresAt"`
}

func (h *MeetingHandler) CreateDailyRoom(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req createRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	chat := true
	if req.EnableChat != nil {
		chat = *req.EnableChat
	}
	res, err := h.uc.CreateRoom(c.Context(), id.UID, usecase.RoomInput{
		RoomName:        req.RoomName,
		Privacy:         req.Privacy,
		EnableRecording: req.EnableRecording,
		EnableChat:      chat,
		MaxParticipants: req.MaxParticipants,
		ExpiresAt:       req.ExpiresAt.Time,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

type scheduleInterviewRequest struct {
	CandidateEmail     string   `json:"candidateEmail"`
	CandidateName      string   `json:"candidateName"`
	InterviewType      string   `json:"interviewType"`
	DurationMinutes    int      `json:"durationMinutes"`
	Interviewers       []string `json:"interviewers"`
	ProposedTimes      []string `json:"proposedTimes"`
	MeetingLink        string   `json:"meetingLink"`
	Notes              string   `json:"notes"`
	SendCalendarInvite *bool    `json:"sendCalendarInvite"`
}

func (h *MeetingHandler) ScheduleInterview(c fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req scheduleInterviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	invite := true
	if req.SendCalendarInvite != nil {
		invite = *req.SendCalendarInvite
	}
	res, err := h.uc.ScheduleInterview(c.Context(), id.UID, usecase.InterviewInput{
		CandidateEmail:  req.CandidateEmail,
		CandidateName:   req.CandidateName,
		InterviewType:   req.InterviewType,
		DurationMinutes: req.DurationMinutes,
		Interviewers:    req.Interviewers,
		ProposedTimes:   req.ProposedTimes,
		MeetingLink:     req.MeetingLink,
		Notes:           req.Notes,
		SendInvite:      invite,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, res)
}

func (h *MeetingHandler) RegisterRoutes(r fiber.Router, requireAuth fiber.Handler) {
	r.Post("/createDailyRoom", requireAuth, h.CreateDailyRoom)
	r.Post("/scheduleInterview", requireAuth, h.ScheduleInterview)
}
