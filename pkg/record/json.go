package record

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonMarshalIndent(v interface{}) ([]byte, error) {
	return jsonAPI.MarshalIndent(v, "", "  ")
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return jsonAPI.Unmarshal(data, v)
}
