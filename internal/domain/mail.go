package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const (
	MailTypeRegistration  = "registration"
	MailTypeResetPassword = "reset_password"
	MailTypeAccountReady  = "account_ready"
)

type OTPMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type AccountReadyMailData struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type SMSMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}
