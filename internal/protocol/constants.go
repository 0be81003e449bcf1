package protocol

// DefaultTCPPort is the vendor default control-connection port.
const DefaultTCPPort = 34567

// DefaultUDPPort is the vendor default discovery-broadcast port. UDP
// discovery is not implemented and no code in this module uses the
// constant; Dial's port resolution uses DefaultTCPPort only.
const DefaultUDPPort = 34568

// DateFormat is the textual timestamp format every verb that carries a
// BeginTime/EndTime/device-time string uses on the wire.
const DateFormat = "2006-01-02 15:04:05"

// MsgID is the fixed lookup from verb name to wire message id.
// Callers that pass a name absent from this table receive 0, which every
// verb treats as a caller bug rather than silently sending a malformed frame.
var MsgID = map[string]uint16{
	"KeepAlive":         1006,
	"OPMonitor":         1413,
	"OPSNAP":            1560,
	"OPSendFile":        0x5F2,
	"OPSystemUpgrade":   0x5F5,
	"OPTalk":            1434,
	"OPTalkStart":       1430,
	"OPTalkData":        1432,
	"AlarmInfo":         1504,
	"AlarmSet":          1500,
	"OPNetAlarm":        1506,
	"OPPTZControl":      1400,
	"OPNetKeyboard":     1550,
	"OPTimeQuery":       1452,
	"OPTimeSetting":     1450,
	"SystemInfo":        1020,
	"SystemFunction":    1360,
	"EncodeCapability":  1360,
	"General":           1042,
	"NetWork.NetCommon": 1042,
	"ChannelTitle":      1046,
	"AuthorityList":     1470,
	"Users":             1472,
	"Groups":            1474,
	"AddGroup":          1476,
	"ModifyGroup":       1478,
	"DelGroup":          1480,
	"User":              1482,
	"ModifyUser":        1484,
	"DelUser":           1486,
	"ModifyPassword":    1488,
	"OPMachine":         1450,
	"OPMailTest":        1636,
	"Login":             1000,
	"OPFileQuery":       1440,
	"OPPlayBack":        1420,
	"OPPlayBackClaim":   1424,
}

// KeyCodes maps the single-character shorthand accepted by key_script to the
// device's named key values.
var KeyCodes = map[string]string{
	"M": "Menu",
	"I": "Info",
	"E": "Esc",
	"F": "Func",
	"S": "Shift",
	"L": "Left",
	"U": "Up",
	"R": "Right",
	"D": "Down",
}

// RetCodes maps a device Ret value to a human-readable description, for
// logging and diagnostics only; control flow never compares against this
// table, only against IsSuccess.
var RetCodes = map[int]string{
	100: "OK",
	101: "Unknown error",
	102: "Unsupported version",
	103: "Request not permitted",
	104: "User already logged in",
	105: "User is not logged in",
	106: "Username or password is incorrect",
	107: "User does not have necessary permissions",
	203: "Password is incorrect",
	205: "User does not exist",
	207: "Blacklisted",
	511: "Start of upgrade",
	512: "Upgrade was not started",
	513: "Upgrade data errors",
	514: "Upgrade error",
	515: "Upgrade successful",
}

// IsSuccess reports whether ret is a member of the success code set
// {100, 515}. Every response-evaluating verb tests membership here rather
// than equality to 100, since 515 ("upgrade successful") is also terminal-ok.
func IsSuccess(ret int) bool {
	return ret == 100 || ret == 515
}

// Message ids that exhibit the "response counter = request counter + 1"
// device quirk. Preserved verbatim; never rationalized into the normal
// counter-matches-counter path.
var oddResponseCounterMsgIDs = map[uint16]struct{}{
	0x0585: {},
	0x0590: {},
	0x059A: {},
}

// HasOddResponseCounter reports whether msgID belongs to the small set of
// stream start/claim variants whose reply is keyed by request counter + 1.
func HasOddResponseCounter(msgID uint16) bool {
	_, ok := oddResponseCounterMsgIDs[msgID]
	return ok
}
