package kafka

// ApiVersionsRequest (API key 18, version 0) has no body. Its response
// populates BrokerInfo.UsableAPIVersions, which drives negotiateVersion for
// every subsequent request to that broker (§4.1, §4.4).
type ApiVersionsRequest struct {
	Version int16
}

func (r *ApiVersionsRequest) key() apiKey      { return apiKeyApiVersions }
func (r *ApiVersionsRequest) version() int16   { return r.Version }
func (r *ApiVersionsRequest) setVersion(v int16) { r.Version = v }

func (r *ApiVersionsRequest) encode(pe packetEncoder) error { return nil }

func (r *ApiVersionsRequest) decode(pd packetDecoder, version int16) error {
	r.Version = version
	return nil
}

type apiVersionsResponseKey struct {
	APIKey     int16
	MinVersion int16
	MaxVersion int16
}

func (k *apiVersionsResponseKey) encode(pe packetEncoder) error {
	pe.putInt16(k.APIKey)
	pe.putInt16(k.MinVersion)
	pe.putInt16(k.MaxVersion)
	return nil
}

func (k *apiVersionsResponseKey) decode(pd packetDecoder) (err error) {
	if k.APIKey, err = pd.getInt16(); err != nil {
		return err
	}
	if k.MinVersion, err = pd.getInt16(); err != nil {
		return err
	}
	k.MaxVersion, err = pd.getInt16()
	return err
}

// ApiVersionsResponse enumerates the [min,max] range the broker supports for
// every API key it knows about.
type ApiVersionsResponse struct {
	Version     int16
	Err         KError
	ApiVersions []apiVersionsResponseKey
}

func (r *ApiVersionsResponse) key() apiKey        { return apiKeyApiVersions }
func (r *ApiVersionsResponse) version() int16     { return r.Version }
func (r *ApiVersionsResponse) setVersion(v int16) { r.Version = v }

func (r *ApiVersionsResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	if err := pe.putArrayLength(len(r.ApiVersions)); err != nil {
		return err
	}
	for i := range r.ApiVersions {
		if err := r.ApiVersions[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *ApiVersionsResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.ApiVersions = make([]apiVersionsResponseKey, n)
	for i := range r.ApiVersions {
		if err := r.ApiVersions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// usableVersions flattens an ApiVersionsResponse into the form
// Metadata.withUsableVersions and BrokerInfo expect.
func (r *ApiVersionsResponse) usableVersions() map[apiKey]apiVersionRange {
	out := make(map[apiKey]apiVersionRange, len(r.ApiVersions))
	for _, k := range r.ApiVersions {
		out[apiKey(k.APIKey)] = apiVersionRange{min: k.MinVersion, max: k.MaxVersion}
	}
	return out
}
