package scheduler

import (
	"encoding/json"

	"archi_crm_backend/internal/notification/dispatch"

	"github.com/hibiken/asynq"
)

const TaskReconcileContact = "pipeline.reconcile_contact"

const TaskNotificationDispatch = "notification.dispatch"

const TaskAppointmentReminder = "appointments.reminder"

type ReconcileContactPayload struct {
	ContactID string `json:"contactId"`
}

type AppointmentReminderPayload struct {
	AppointmentID string `json:"appointmentId"`
}

func NewReconcileContactTask(payload ReconcileContactPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileContact, data), nil
}

func ParseReconcileContactPayload(task *asynq.Task) (ReconcileContactPayload, error) {
	var payload ReconcileContactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReconcileContactPayload{}, err
	}
	return payload, nil
}

func NewNotificationDispatchTask(req dispatch.Request) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, data), nil
}

func ParseNotificationDispatchPayload(task *asynq.Task) (dispatch.Request, error) {
	var req dispatch.Request
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return dispatch.Request{}, err
	}
	return req, nil
}

func NewAppointmentReminderTask(payload AppointmentReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAppointmentReminder, data), nil
}

func ParseAppointmentReminderPayload(task *asynq.Task) (AppointmentReminderPayload, error) {
	var payload AppointmentReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AppointmentReminderPayload{}, err
	}
	return payload, nil
}
