package usecase

import (
	"context"
	"fmt"
	netmail "net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"apply-codes/internal/infrastructure/meeting"
	"apply-codes/internal/logger"
	"apply-codes/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRoomLifetime applies when the caller sends no expiresAt.
const DefaultRoomLifetime = 2 * time.Hour

var roomNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type RoomCreator interface {
	CreateRoom(ctx context.Context, p meeting.RoomParams) (meeting.Room, error)
}

type RoomInput struct {
	RoomName        string
	Privacy         string
	EnableRecording bool
	EnableChat      bool
	MaxParticipants int
	ExpiresAt       time.Time
}

type RoomResult struct {
	RoomURL          string    `json:"roomUrl"`
	RoomName         string    `json:"roomName"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RecordingEnabled bool      `json:"recordingEnabled"`
}

// InviteSender delivers interview invitations; the email usecase is one.
type InviteSender interface {
	SendEmail(ctx context.Context, userID string, in SendEmailInput) (SendEmailResult, error)
}

const (
	InterviewScheduled    = "scheduled"
	InterviewAwaitingTime = "awaiting_time"

	defaultInterviewMinutes = 60
)

var interviewTypes = map[string]string{
	"phone_screen": "Phone screen",
	"technical":    "Technical interview",
	"behavioral":   "Behavioral interview",
	"onsite":       "Onsite interview",
	"final":        "Final interview",
}

type InterviewInput struct {
	CandidateEmail  string
	CandidateName   string
	InterviewType   string
	DurationMinutes int
	Interviewers    []string
	ProposedTimes   []string
	MeetingLink     string
	Notes           string
	SendInvite      bool
}

type InterviewResult struct {
	InterviewID     string      `json:"interviewId"`
	ScheduledTime   *time.Time  `json:"scheduledTime"`
	ProposedTimes   []time.Time `json:"proposedTimes"`
	DurationMinutes int         `json:"durationMinutes"`
	MeetingLink     string      `json:"meetingLink"`
	RoomName        string      `json:"roomName,omitempty"`
	InvitesSent     []string    `json:"invitesSent"`
	InviteError     string      `json:"inviteError,omitempty"`
	Status          string      `json:"status"`
}

type MeetingUsecase interface {
	CreateRoom(ctx context.Context, userID string, in RoomInput) (RoomResult, error)
	ScheduleInterview(ctx context.Context, userID string, in InterviewInput) (InterviewResult, error)
}

type Meetings struct {
	rooms   RoomCreator
	invites InviteSender
	store   store.Store
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewMeetingUsecase(rooms RoomCreator, invites InviteSender, s store.Store, log *zap.Logger) *Meetings {
	return &Meetings{
		rooms:   rooms,
		invites: invites,
		store:   s,
		logger:  logger.OrNop(log),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (u *Meetings) CreateRoom(ctx context.Context, userID string, in RoomInput) (RoomResult, error) {
	name := strings.TrimSpace(in.RoomName)
	if name != "" && !roomNameRe.MatchString(name) {
		return RoomResult{}, invalid("roomName may only contain letters, digits, '-' and '_'")
	}
	if in.MaxParticipants < 0 || in.MaxParticipants > 200 {
		return RoomResult{}, invalid("maxParticipants must be between 1 and 200")
	}
	now := u.now()
	expires := in.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(DefaultRoomLifetime)
	}
	if !expires.After(now) {
		return RoomResult{}, invalid("expiresAt must be in the future")
	}

	room, err := u.rooms.CreateRoom(ctx, meeting.RoomParams{
		Name:            name,
		Privacy:         in.Privacy,
		EnableRecording: in.EnableRecording,
		EnableChat:      in.EnableChat,
		MaxParticipants: in.MaxParticipants,
		ExpiresAt:       expires,
	})
	if err != nil {
		return RoomResult{}, err
	}
	if room.ExpiresAt.IsZero() {
		room.ExpiresAt = expires.UTC().Truncate(time.Second)
	}

	err = u.store.Set(ctx, store.CollectionMeetings, firstNonEmpty(room.ID, room.Name), map[string]any{
		"user_id":           userID,
		"room_name":         room.Name,
		"room_url":          room.URL,
		"privacy":           room.Privacy,
		"recording_enabled": room.RecordingEnabled,
		"expires_at":        room.ExpiresAt,
		"created_at":        now.UTC(),
	})
	if err != nil {
		u.logger.Warn("meeting record failed", zap.String("room", room.Name), zap.Error(err))
	}
	return RoomResult{
		RoomURL:          room.URL,
		RoomName:         room.Name,
		ExpiresAt:        room.ExpiresAt,
		RecordingEnabled: room.RecordingEnabled,
	}, nil
}

// ScheduleInterview books the earliest future proposed time. Without a
// meeting link a private video room is created that stays open for the
// interview plus DefaultRoomLifetime. With no proposed times the interview
// is recorded as awaiting a time and the invite asks for availability.
func (u *Meetings) ScheduleInterview(ctx context.Context, userID string, in InterviewInput) (InterviewResult, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(in.CandidateEmail))
	if err != nil {
		return InterviewResult{}, invalid("candidateEmail must be a valid email address")
	}
	name := strings.TrimSpace(in.CandidateName)
	if name == "" {
		return InterviewResult{}, invalid("candidateName is required")
	}
	kind := strings.TrimSpace(in.InterviewType)
	label, ok := interviewTypes[kind]
	if !ok {
		return InterviewResult{}, invalid("interviewType must be one of phone_screen, technical, behavioral, onsite, final")
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = defaultInterviewMinutes
	}
	if duration < 15 || duration > 480 {
		return InterviewResult{}, invalid("durationMinutes must be between 15 and 480")
	}
	interviewers := make([]string, 0, len(in.Interviewers))
	for i, raw := range in.Interviewers {
		a, err := netmail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return InterviewResult{}, invalid("interviewers[%d] must be a valid email address", i)
		}
		interviewers = append(interviewers, a.Address)
	}

	now := u.now().UTC()
	proposed := make([]time.Time, 0, len(in.ProposedTimes))
	for i, raw := range in.ProposedTimes {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return InterviewResult{}, invalid("proposedTimes[%d] must be an RFC 3339 time", i)
		}
		if t.After(now) {
			proposed = append(proposed, t.UTC())
		}
	}
	if len(in.ProposedTimes) > 0 && len(proposed) == 0 {
		return InterviewResult{}, invalid("proposedTimes must include a future time")
	}
	sort.Slice(proposed, func(i, j int) bool { return proposed[i].Before(proposed[j]) })

	res := InterviewResult{
		InterviewID:     u.newID(),
		ProposedTimes:   proposed,
		DurationMinutes: duration,
		MeetingLink:     strings.TrimSpace(in.MeetingLink),
		InvitesSent:     []string{},
		Status:          InterviewAwaitingTime,
	}
	if len(proposed) > 0 {
		at := proposed[0]
		res.ScheduledTime = &at
		res.Status = InterviewScheduled
	}

	if res.MeetingLink == "" && res.ScheduledTime != nil {
		room, err := u.rooms.CreateRoom(ctx, meeting.RoomParams{
			Name:       interviewRoomName(res.InterviewID),
			Privacy:    "private",
			EnableChat: true,
			ExpiresAt:  res.ScheduledTime.Add(time.Duration(duration)*time.Minute + DefaultRoomLifetime),
		})
		if err != nil {
			return InterviewResult{}, err
		}
		res.MeetingLink, res.RoomName = room.URL, room.Name
	}

	if in.SendInvite && u.invites != nil {
		_, err := u.invites.SendEmail(ctx, userID, SendEmailInput{
			To:      []string{addr.Address},
			CC:      interviewers,
			Subject: fmt.Sprintf("%s invitation for %s", label, name),
			Body:    inviteBody(name, label, duration, res, strings.TrimSpace(in.Notes)),
		})
		if err != nil {
			// the interview stands; the caller can resend the invite
			u.logger.Warn("interview invite failed", zap.String("interview_id", res.InterviewID), zap.Error(err))
			res.InviteError = err.Error()
		} else {
			res.InvitesSent = append(append(res.InvitesSent, addr.Address), interviewers...)
		}
	}

	err = u.store.Set(ctx, store.CollectionMeetings, res.InterviewID, map[string]any{
		"user_id":          userID,
		"kind":             "interview",
		"candidate_email":  addr.Address,
		"candidate_name":   name,
		"interview_type":   kind,
		"duration_minutes": duration,
		"interviewers":     interviewers,
		"scheduled_time":   res.ScheduledTime,
		"proposed_times":   proposed,
		"meeting_link":     res.MeetingLink,
		"room_name":        res.RoomName,
		"invites_sent":     res.InvitesSent,
		"status":           res.Status,
		"notes":            strings.TrimSpace(in.Notes),
		"created_at":       now,
	})
	if err != nil {
		u.logger.Warn("interview record failed", zap.String("interview_id", res.InterviewID), zap.Error(err))
	}
	return res, nil
}

func interviewRoomName(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return "interview-" + id
}

func inviteBody(name, label string, duration int, res InterviewResult, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(name))
	if res.ScheduledTime != nil {
		fmt.Fprintf(&b, "Your %s is scheduled for %s (%d minutes).\n",
			strings.ToLower(label), res.ScheduledTime.Format("Mon, 02 Jan 2006 15:04 MST"), duration)
		if len(res.ProposedTimes) > 1 {
			b.WriteString("If that time does not work, these are also open:\n")
			for _, t := range res.ProposedTimes[1:] {
				fmt.Fprintf(&b, "- %s\n", t.Format("Mon, 02 Jan 2006 15:04 MST"))
			}
		}
	} else {
		fmt.Fprintf(&b, "We would like to invite you to a %d minute %s. Please reply with a few times that suit you.\n",
			duration, strings.ToLower(label))
	}
	if res.MeetingLink != "" {
		fmt.Fprintf(&b, "\nJoin here: %s\n", res.MeetingLink)
	}
	if notes != "" {
		fmt.Fprintf(&b, "\n%s\n", notes)
	}
	return b.String()
}
