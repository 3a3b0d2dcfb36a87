package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/masala-table/api/internal/domain"
)

type contactFixture struct {
	service  ContactService
	messages *fakeContactRepo
	notifier *fakeNotifier
}

func newContactFixture(t *testing.T) *contactFixture {
	t.Helper()

	messages := newFakeContactRepo()
	notifier := &fakeNotifier{}
	service, err := NewContactService(ContactServiceDeps{
		Messages:    messages,
		Notifier:    notifier,
		AdminEmail:  "owner@masalatable.in",
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("x"),
	})
	if err != nil {
		t.Fatalf("NewContactService: %v", err)
	}
	return &contactFixture{service: service, messages: messages, notifier: notifier}
}

func contactInput() ContactInput {
	return ContactInput{
		Name:    "Priya",
		Email:   "Priya@Example.com",
		Subject: "Catering enquiry",
		Message: "Do you cater for parties of 40?",
	}
}

func TestSubmitStoresSanitisedMessageAndNotifiesAdmin(t *testing.T) {
	fx := newContactFixture(t)

	input := contactInput()
	input.Name = "<b>Priya</b>"
	input.Message = "Do you cater? <script>alert(1)</script>"

	msg, err := fx.service.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if msg.Name != "Priya" {
		t.Fatalf("Name = %q, want markup stripped", msg.Name)
	}
	if strings.Contains(msg.Message, "<script>") {
		t.Fatalf("Message kept markup: %q", msg.Message)
	}
	if msg.Email != "priya@example.com" {
		t.Fatalf("Email = %q, want lowercased", msg.Email)
	}
	if msg.Status != domain.ContactPending {
		t.Fatalf("Status = %q, want pending", msg.Status)
	}

	if len(fx.notifier.notifications) != 1 || fx.notifier.notifications[0].Recipient != "owner@masalatable.in" {
		t.Fatalf("notifications = %+v", fx.notifier.notifications)
	}
}

func TestSubmitValidation(t *testing.T) {
	fx := newContactFixture(t)

	cases := []struct {
		name   string
		mutate func(*ContactInput)
	}{
		{"blank name", func(in *ContactInput) { in.Name = " " }},
		{"bad email", func(in *ContactInput) { in.Email = "not-an-email" }},
		{"blank subject", func(in *ContactInput) { in.Subject = "" }},
		{"blank message", func(in *ContactInput) { in.Message = "" }},
		{"oversized message", func(in *ContactInput) { in.Message = strings.Repeat("x", maxContactMessageLength+1) }},
		{"markup-only name", func(in *ContactInput) { in.Name = "<img src=x>" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := contactInput()
			tc.mutate(&input)
			if _, err := fx.service.Submit(context.Background(), input); !errors.Is(err, ErrContactInvalidInput) {
				t.Fatalf("err = %v, want ErrContactInvalidInput", err)
			}
		})
	}
}

func TestSubmitSurvivesNotificationFailure(t *testing.T) {
	fx := newContactFixture(t)
	fx.notifier.err = errors.New("broker down")

	msg, err := fx.service.Submit(context.Background(), contactInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := fx.messages.FindByID(context.Background(), msg.ID); err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
}

func TestMailboxActionsAreAdminOnly(t *testing.T) {
	fx := newContactFixture(t)
	customer := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	if _, err := fx.service.List(context.Background(), customer); !errors.Is(err, ErrContactForbidden) {
		t.Fatalf("List err = %v, want ErrContactForbidden", err)
	}
	if _, err := fx.service.Resolve(context.Background(), customer, "msg_1"); !errors.Is(err, ErrContactForbidden) {
		t.Fatalf("Resolve err = %v, want ErrContactForbidden", err)
	}
	if err := fx.service.Delete(context.Background(), customer, "msg_1"); !errors.Is(err, ErrContactForbidden) {
		t.Fatalf("Delete err = %v, want ErrContactForbidden", err)
	}
}

func TestResolveAndDeleteMessage(t *testing.T) {
	fx := newContactFixture(t)
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	msg, err := fx.service.Submit(context.Background(), contactInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resolved, err := fx.service.Resolve(context.Background(), admin, msg.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != domain.ContactResolved || resolved.RespondedBy != "usr_staff" {
		t.Fatalf("resolved = %+v", resolved)
	}

	if err := fx.service.Delete(context.Background(), admin, msg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fx.service.Resolve(context.Background(), admin, msg.ID); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("Resolve after delete err = %v, want ErrContactNotFound", err)
	}
}
