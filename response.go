package sfquery

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

/*****************************************/
/*  Salesforce auth token response type  */
/*****************************************/

// AccessTokenResponse represents a successful response of a request to salesforce for an OAuth token
// https://${yourInstance}.salesforce.com/services/oauth2/token
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
	Instance    string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
}

// OAuthErr represents an error that occurs during the OAuth authorization flow
// https://help.salesforce.com/articleView?id=remoteaccess_oauth_flow_errors.htm&type=5
type OAuthErr struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthErr) Error() string {
	return fmt.Sprintf("error code: %s, description: %s", e.Code, e.Description)
}

/**********************************************/
/*  Salesforce REST API error response types  */
/**********************************************/

// APIError represents an error response from salesforce REST API endpoints
// Example:
// [
//
//	{
//			"statusCode": "MALFORMED_ID",
//			"message": "SomeSaleforceObject ID: id value of incorrect type: 1234",
//			"fields": [
//				"Id"
//			]
//	}
//
// ]
type APIError []ErrorObject

func (e *APIError) Error() string {
	var str []string
	if e != nil {
		for _, e := range *e {
			str = append(str, e.Error())
		}
	}
	return strings.Join(str, "\n")
}

type ErrorObject struct {
	Message string   `json:"message" xml:"message"`
	ErrCode string   `json:"errorCode" xml:"errorCode"`
	Fields  []string `json:"fields" xml:"fields"`
}

func (e *ErrorObject) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("error code: %s, message: %s, fields: %s", e.ErrCode, e.Message, strings.Join(e.Fields, ","))
	}
	return fmt.Sprintf("error code: %s, message: %s", e.ErrCode, e.Message)
}

// xmlErrorList mirrors APIError for endpoints that answer in XML, e.g. the
// query endpoint when called with Accept: application/xml.
type xmlErrorList struct {
	XMLName xml.Name      `xml:"Errors"`
	Errors  []ErrorObject `xml:"Error"`
}

// decodeAPIError decodes a salesforce error response body into an *APIError.
// The query endpoint answers in XML while the JSON endpoints answer with a
// JSON array, so the payload format is sniffed from the first byte.
func decodeAPIError(body []byte) (*APIError, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		var list xmlErrorList
		if err := xml.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		apiErr := APIError(list.Errors)
		return &apiErr, nil
	}
	var apiErr APIError
	if err := json.Unmarshal(trimmed, &apiErr); err != nil {
		return nil, err
	}
	return &apiErr, nil
}

/*************************************/
/*  Salesforce query response types  */
/*************************************/

// Record is one decoded row of query results: field name to field value.
// Salesforce returns untyped text on the XML query path, so values are
// strings and callers coerce further as needed.
type Record map[string]string

// UnmarshalXML decodes one <records> node. Each direct child element becomes
// a field; nested structure flattens to its concatenated character data.
func (r *Record) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	rec := make(Record)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := flattenElement(d, t)
			if err != nil {
				return err
			}
			rec[t.Name.Local] = val
		case xml.EndElement:
			*r = rec
			return nil
		}
	}
}

// flattenElement consumes tokens up to the end of the element opened by
// start, returning all character data found at any depth within it.
func flattenElement(d *xml.Decoder, start xml.StartElement) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// QueryError is a service-level rejection of a query request, decoded from
// the Error node of a query response.
type QueryError struct {
	ErrCode string `xml:"errorCode"`
	Message string `xml:"message"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Message)
}

// queryEnvelope is the decoded shape of one query response page. It is
// decoded once per response; the Error node and nextRecordsUrl are both
// optional and mutually exclusive in practice, with the Error node taking
// precedence when present.
type queryEnvelope struct {
	XMLName        xml.Name
	TotalSize      int         `xml:"totalSize"`
	Done           bool        `xml:"done"`
	Records        []Record    `xml:"records"`
	NextRecordsURL string      `xml:"nextRecordsUrl"`
	Err            *QueryError `xml:"Error"`
}

/************************************/
/*  Salesforce CRUD response types  */
/************************************/

// CreateResponse is the body returned by sobject create calls.
type CreateResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}
