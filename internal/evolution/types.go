package evolution

// sendOptions mirrors the gateway's message options block. The delay
// and composing presence make replies read as typed by a human.
type sendOptions struct {
	Delay       int    `json:"delay"`
	Presence    string `json:"presence"`
	LinkPreview bool   `json:"linkPreview"`
}

func defaultSendOptions() sendOptions {
	return sendOptions{Delay: 1200, Presence: "composing", LinkPreview: false}
}

type textMessage struct {
	Text string `json:"text"`
}

type sendTextRequest struct {
	Number      string      `json:"number"`
	Options     sendOptions `json:"options"`
	TextMessage textMessage `json:"textMessage"`
}

type mediaMessage struct {
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

type sendMediaRequest struct {
	Number       string       `json:"number"`
	Options      sendOptions  `json:"options"`
	MediaMessage mediaMessage `json:"mediaMessage"`
}

// remoteInstance tolerates both the wrapped and the flat shapes the
// gateway uses for instance listings.
type remoteInstance struct {
	Instance *remoteInstanceData `json:"instance"`
	remoteInstanceData
}

type remoteInstanceData struct {
	InstanceName      string `json:"instanceName"`
	InstanceID        string `json:"instanceId"`
	Owner             string `json:"owner"`
	OwnerJID          string `json:"ownerJid"`
	ProfileName       string `json:"profileName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	Status            string `json:"status"`
	ConnectionStatus  string `json:"connectionStatus"`
}

func (r remoteInstance) data() remoteInstanceData {
	if r.Instance != nil {
		return *r.Instance
	}
	return r.remoteInstanceData
}

func (d remoteInstanceData) ownerNumber() string {
	if d.OwnerJID != "" {
		return d.OwnerJID
	}
	return d.Owner
}

func (d remoteInstanceData) connectionState() string {
	if d.ConnectionStatus != "" {
		return d.ConnectionStatus
	}
	return d.Status
}
