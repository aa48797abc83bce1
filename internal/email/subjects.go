package email

const (
	subjectPrefix  = "[CRM] "
	subjectDefault = "Notification"
)
