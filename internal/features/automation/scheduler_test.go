package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func scheduledAutomation(schedule *Schedule, lastExecutedAt *time.Time) *Automation {
	return &Automation{
		ID:             primitive.NewObjectID(),
		OrganizationID: primitive.NewObjectID(),
		Name:           "Scheduled",
		IsActive:       true,
		Trigger:        Trigger{Type: TriggerScheduled, Schedule: schedule},
		LastExecutedAt: lastExecutedAt,
	}
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestShouldRunAt(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := at(2026, time.March, 2, 9, 3)
	mondayMorning := at(2026, time.March, 2, 9, 0)
	sunday := at(2026, time.March, 1, 9, 3)
	dayOfMonth15 := 15

	tests := []struct {
		name     string
		schedule *Schedule
		last     *time.Time
		now      time.Time
		want     bool
	}{
		{
			name:     "daily at time inside window",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
			now:      monday,
			want:     true,
		},
		{
			name:     "daily already executed today",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
			last:     &mondayMorning,
			now:      monday,
			want:     false,
		},
		{
			name:     "daily executed yesterday runs again",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
			last:     &mondayMorning,
			now:      at(2026, time.March, 3, 9, 3),
			want:     true,
		},
		{
			name:     "daily wrong hour",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
			now:      at(2026, time.March, 2, 10, 0),
			want:     false,
		},
		{
			name:     "daily minute past window",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
			now:      at(2026, time.March, 2, 9, 6),
			want:     false,
		},
		{
			name:     "daily minute before scheduled still inside window",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:05"},
			now:      mondayMorning,
			want:     true,
		},
		{
			name:     "daily without time runs on any sweep",
			schedule: &Schedule{Frequency: FrequencyDaily},
			now:      at(2026, time.March, 2, 17, 42),
			want:     true,
		},
		{
			name:     "once never executed",
			schedule: &Schedule{Frequency: FrequencyOnce},
			now:      monday,
			want:     true,
		},
		{
			name:     "once already executed",
			schedule: &Schedule{Frequency: FrequencyOnce},
			last:     &sunday,
			now:      monday,
			want:     false,
		},
		{
			name:     "weekly on listed weekday",
			schedule: &Schedule{Frequency: FrequencyWeekly, DaysOfWeek: []int{1, 3}, Time: "09:00"},
			now:      monday,
			want:     true,
		},
		{
			name:     "weekly on unlisted weekday",
			schedule: &Schedule{Frequency: FrequencyWeekly, DaysOfWeek: []int{1, 3}, Time: "09:00"},
			now:      sunday,
			want:     false,
		},
		{
			name:     "monthly on the day",
			schedule: &Schedule{Frequency: FrequencyMonthly, DayOfMonth: &dayOfMonth15},
			now:      at(2026, time.March, 15, 9, 0),
			want:     true,
		},
		{
			name:     "monthly on another day",
			schedule: &Schedule{Frequency: FrequencyMonthly, DayOfMonth: &dayOfMonth15},
			now:      monday,
			want:     false,
		},
		{
			name: "before start date",
			schedule: &Schedule{
				Frequency: FrequencyDaily,
				StartDate: timePtr(at(2026, time.April, 1, 0, 0)),
			},
			now:  monday,
			want: false,
		},
		{
			name: "after end date",
			schedule: &Schedule{
				Frequency: FrequencyDaily,
				EndDate:   timePtr(at(2026, time.February, 1, 0, 0)),
			},
			now:  monday,
			want: false,
		},
		{
			name:     "malformed time never fires",
			schedule: &Schedule{Frequency: FrequencyDaily, Time: "9am"},
			now:      monday,
			want:     false,
		},
		{
			name: "nil schedule never fires",
			now:  monday,
			want: false,
		},
		{
			name:     "unknown frequency never fires",
			schedule: &Schedule{Frequency: ScheduleFrequency("hourly")},
			now:      monday,
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			automation := scheduledAutomation(tc.schedule, tc.last)
			if got := shouldRunAt(automation, tc.now); got != tc.want {
				t.Errorf("shouldRunAt() = %v, want %v", got, tc.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestTickRunsOnlyDueAutomations(t *testing.T) {
	now := at(2026, time.March, 2, 9, 3)
	executedToday := at(2026, time.March, 2, 9, 0)

	repo := &fakeAutomationRepo{
		automations: []Automation{
			{
				ID: primitive.NewObjectID(), OrganizationID: primitive.NewObjectID(),
				Name: "Due", IsActive: true,
				Trigger: Trigger{
					Type:     TriggerScheduled,
					Schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
				},
			},
			{
				ID: primitive.NewObjectID(), OrganizationID: primitive.NewObjectID(),
				Name: "Already ran", IsActive: true,
				Trigger: Trigger{
					Type:     TriggerScheduled,
					Schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
				},
				LastExecutedAt: &executedToday,
			},
		},
	}
	runner := &fakeRunner{}

	scheduler := &SchedulerImpl{repo: repo, runner: runner, logger: zap.NewNop()}

	result, err := scheduler.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scheduled != 1 {
		t.Errorf("scheduled = %d, want 1", result.Scheduled)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "Due" {
		t.Errorf("ran %v, want only the due automation", runner.ran)
	}
}

func TestTickCountsFailingAutomationAsScheduled(t *testing.T) {
	now := at(2026, time.March, 2, 9, 3)

	repo := &fakeAutomationRepo{
		automations: []Automation{
			{
				ID: primitive.NewObjectID(), OrganizationID: primitive.NewObjectID(),
				Name: "Broken", IsActive: true,
				Trigger: Trigger{
					Type:     TriggerScheduled,
					Schedule: &Schedule{Frequency: FrequencyDaily, Time: "09:00"},
				},
			},
		},
	}
	runner := &fakeRunner{failOn: map[string]error{"Broken": errors.New("boom")}}

	scheduler := &SchedulerImpl{repo: repo, runner: runner, logger: zap.NewNop()}

	result, err := scheduler.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scheduled != 1 {
		t.Errorf("scheduled = %d, want 1 (due automations count even when the run fails)", result.Scheduled)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "Broken: boom" {
		t.Errorf("errors = %v, want the failure surfaced", result.Errors)
	}
}

func TestExecutedOnAcrossTimezones(t *testing.T) {
	serverZone := time.FixedZone("UTC+2", 2*60*60)

	// Stored in UTC late on March 2nd; in server time that instant is
	// already March 3rd.
	lastUTC := time.Date(2026, time.March, 2, 23, 30, 0, 0, time.UTC)
	nowLocal := time.Date(2026, time.March, 3, 1, 0, 0, 0, serverZone)

	if !executedOn(&lastUTC, nowLocal) {
		t.Error("a run 90 minutes ago falls on today's local date; it must dedup")
	}

	nextDay := time.Date(2026, time.March, 4, 1, 0, 0, 0, serverZone)
	if executedOn(&lastUTC, nextDay) {
		t.Error("the following local day must not dedup")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		value   string
		hour    int
		minute  int
		wantErr bool
	}{
		{value: "09:00", hour: 9, minute: 0},
		{value: "23:59", hour: 23, minute: 59},
		{value: "0:5", hour: 0, minute: 5},
		{value: "24:00", wantErr: true},
		{value: "12:60", wantErr: true},
		{value: "noon", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			hour, minute, err := parseClock(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hour != tc.hour || minute != tc.minute {
				t.Errorf("got %02d:%02d, want %02d:%02d", hour, minute, tc.hour, tc.minute)
			}
		})
	}
}
