package kafka

// SaslHandshakeRequest (API key 17, version 0) negotiates the SASL
// mechanism before the actual authentication bytes flow. Only handshake
// framing is in scope here; mechanism implementations are an external
// collaborator (§1 Non-goals).
type SaslHandshakeRequest struct {
	Version   int16
	Mechanism string
}

func (r *SaslHandshakeRequest) key() apiKey        { return apiKeySaslHandshake }
func (r *SaslHandshakeRequest) version() int16     { return r.Version }
func (r *SaslHandshakeRequest) setVersion(v int16) { r.Version = v }

func (r *SaslHandshakeRequest) encode(pe packetEncoder) error {
	return pe.putString(r.Mechanism)
}

func (r *SaslHandshakeRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	r.Mechanism, err = pd.getString()
	return err
}

// SaslHandshakeResponse reports whether the mechanism is supported and, if
// not, which mechanisms are.
type SaslHandshakeResponse struct {
	Version           int16
	Err               KError
	EnabledMechanisms []string
}

func (r *SaslHandshakeResponse) key() apiKey        { return apiKeySaslHandshake }
func (r *SaslHandshakeResponse) version() int16     { return r.Version }
func (r *SaslHandshakeResponse) setVersion(v int16) { r.Version = v }

func (r *SaslHandshakeResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return pe.putStringArray(r.EnabledMechanisms)
}

func (r *SaslHandshakeResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	r.EnabledMechanisms, err = pd.getStringArray()
	return err
}
