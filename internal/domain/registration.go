package domain

type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelMobile
}

type RegistrationState string

const (
	RegistrationPending        RegistrationState = "pending"
	RegistrationEmailVerified  RegistrationState = "email_verified"
	RegistrationMobileVerified RegistrationState = "mobile_verified"
	RegistrationActive         RegistrationState = "active"
)

// RegistrationStateOf 由两个相互独立的通道标记推导出注册状态，两个通道的验证顺序任意
func RegistrationStateOf(emailVerified, mobileVerified bool) RegistrationState {
	switch {
	case emailVerified && mobileVerified:
		return RegistrationActive
	case emailVerified:
		return RegistrationEmailVerified
	case mobileVerified:
		return RegistrationMobileVerified
	default:
		return RegistrationPending
	}
}
