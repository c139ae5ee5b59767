package openapi

import "net/http"

var appointmentStatuses = []string{"Pendiente", "Confirmado", "Atendido", "NoAtendido", "Cancelado"}

var pageQuery = []string{"limit", "offset"}

var faceSurfaces = []string{"mesial", "distal", "oclusal", "incisal", "lingual", "palatina", "vestibular"}

func defaultOperations() map[string]Operation {
	return map[string]Operation{
		"GET /health":    {Summary: "Liveness check", Tag: "system"},
		"GET /health/db": {Summary: "Database pool statistics", Tag: "system"},

		"POST /api/v1/patients":    {Summary: "Register a patient", RequestBody: "PatientInput", Response: "Patient", Status: http.StatusCreated},
		"GET /api/v1/patients":     {Summary: "Search patients", Response: "PatientPage", Query: append([]string{"q"}, pageQuery...)},
		"GET /api/v1/patients/:id": {Summary: "Get a patient", Response: "Patient"},
		"PUT /api/v1/patients/:id": {Summary: "Update a patient", RequestBody: "PatientInput", Response: "Patient"},

		"POST /api/v1/patients/:id/procedures": {Summary: "Record a procedure", RequestBody: "ProcedureInput", Response: "Procedure", Status: http.StatusCreated},
		"GET /api/v1/patients/:id/procedures":  {Summary: "List a patient's procedures", Response: "ProcedurePage", Query: pageQuery},

		"POST /api/v1/appointments": {Summary: "Book an appointment", RequestBody: "AppointmentInput", Response: "Appointment", Status: http.StatusCreated},
		"GET /api/v1/appointments": {
			Summary:  "List appointments",
			Response: "AppointmentPage",
			Query:    append([]string{"date", "from", "status", "patient_id", "q"}, pageQuery...),
		},
		"POST /api/v1/appointments/sweep":        {Summary: "Mark overdue appointments as no-show", Response: "SweepResult"},
		"GET /api/v1/appointments/:id":           {Summary: "Get an appointment", Response: "Appointment"},
		"GET /api/v1/appointments/:id/history":   {Summary: "Status change history", Response: "StatusChangeList"},
		"POST /api/v1/appointments/:id/status":   {Summary: "Change appointment status", RequestBody: "StatusInput", Response: "Appointment"},
		"DELETE /api/v1/appointments/:id":        {Summary: "Delete a pending appointment", Status: http.StatusNoContent},
		"GET /api/v1/patients/:id/odontogram":    {Summary: "Get or create the current odontogram", Response: "OdontogramView"},
		"POST /api/v1/patients/:id/odontogram/versions": {
			Summary:     "Create a new odontogram version",
			RequestBody: "OdontogramVersionInput",
			Response:    "OdontogramWrite",
			Status:      http.StatusCreated,
		},
		"GET /api/v1/patients/:id/odontogram/versions/:versionId": {Summary: "Get an odontogram version", Response: "OdontogramView"},

		"GET /api/v1/localities":     {Summary: "Search localities by name", Response: "LocalityPage", Query: append([]string{"q"}, pageQuery...)},
		"GET /api/v1/localities/:id": {Summary: "Get a locality", Response: "Locality"},
		"POST /api/v1/localities":    {Summary: "Get or create a locality by name", RequestBody: "LocalityInput", Response: "Locality", Status: http.StatusCreated},

		"GET /api/v1/insurers":     {Summary: "Search insurers by name", Response: "InsurerPage", Query: append([]string{"q"}, pageQuery...)},
		"GET /api/v1/insurers/:id": {Summary: "Get an insurer", Response: "Insurer"},
		"POST /api/v1/insurers":    {Summary: "Register an insurer", RequestBody: "InsurerInput", Response: "Insurer", Status: http.StatusCreated},

		"GET /api/v1/practices": {
			Summary:  "List practices for an insurer, or private ones",
			Response: "PracticePage",
			Query:    append([]string{"q", "insurer_id", "all"}, pageQuery...),
		},
		"GET /api/v1/practices/:id":    {Summary: "Get a practice", Response: "Practice"},
		"POST /api/v1/practices":       {Summary: "Add a practice to the catalog", RequestBody: "PracticeInput", Response: "Practice", Status: http.StatusCreated},
		"PUT /api/v1/practices/:id":    {Summary: "Update a practice", RequestBody: "PracticeInput", Response: "Practice"},
		"DELETE /api/v1/practices/:id": {Summary: "Delete an unused practice", Status: http.StatusNoContent},
	}
}

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func nullableStr() map[string]interface{} {
	return map[string]interface{}{"type": "string", "nullable": true}
}

func id() map[string]interface{} { return map[string]interface{}{"type": "integer", "format": "int64"} }

func dateTime() map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time"}
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func arrayOf(name string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": ref(name)}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func page(item string) map[string]interface{} {
	return object(nil, map[string]interface{}{
		"data":     arrayOf(item),
		"total":    map[string]interface{}{"type": "integer"},
		"limit":    map[string]interface{}{"type": "integer"},
		"offset":   map[string]interface{}{"type": "integer"},
		"has_more": map[string]interface{}{"type": "boolean"},
		"next":     nullableStr(),
		"prev":     nullableStr(),
	})
}

func buildComponentSchemas() map[string]interface{} {
	patientProps := map[string]interface{}{
		"first_name":       str(),
		"last_name":        str(),
		"document_number":  map[string]interface{}{"type": "string", "pattern": "^[0-9]{7,8}$"},
		"birth_date":       map[string]interface{}{"type": "string", "format": "date"},
		"phone":            nullableStr(),
		"address":          nullableStr(),
		"locality_id":      id(),
		"locality_name":    str(),
		"insurer_id":       id(),
		"affiliate_number": nullableStr(),
	}
	patient := map[string]interface{}{"id": id(), "created_at": dateTime(), "updated_at": dateTime()}
	for k, v := range patientProps {
		patient[k] = v
	}

	practiceProps := map[string]interface{}{
		"code":          str(),
		"description":   str(),
		"amount":        map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
		"provider_type": map[string]interface{}{"type": "string", "enum": []string{"OBRA_SOCIAL", "PARTICULAR"}},
		"insurer_id":    id(),
	}
	practice := map[string]interface{}{"id": id(), "created_at": dateTime(), "updated_at": dateTime()}
	for k, v := range practiceProps {
		practice[k] = v
	}

	face := object([]string{"tooth", "face"}, map[string]interface{}{
		"id":        id(),
		"tooth":     str(),
		"face":      map[string]interface{}{"type": "string", "enum": faceSurfaces},
		"mark_code": nullableStr(),
		"mark_text": nullableStr(),
		"comment":   nullableStr(),
	})

	return map[string]interface{}{
		"Error": object([]string{"code", "message"}, map[string]interface{}{
			"code":    str(),
			"message": str(),
		}),

		"PatientInput": object([]string{"first_name", "last_name", "document_number"}, patientProps),
		"Patient":      object(nil, patient),
		"PatientPage":  page("Patient"),

		"LocalityInput": object([]string{"name"}, map[string]interface{}{"name": str()}),
		"Locality": object(nil, map[string]interface{}{
			"id":         id(),
			"name":       str(),
			"created_at": dateTime(),
		}),
		"LocalityPage": page("Locality"),

		"InsurerInput": object([]string{"name"}, map[string]interface{}{"name": str(), "code": nullableStr()}),
		"Insurer": object(nil, map[string]interface{}{
			"id":         id(),
			"name":       str(),
			"code":       nullableStr(),
			"created_at": dateTime(),
		}),
		"InsurerPage": page("Insurer"),

		"PracticeInput": object([]string{"code", "description", "amount", "provider_type"}, practiceProps),
		"Practice":      object(nil, practice),
		"PracticePage":  page("Practice"),

		"ProcedureInput": object(nil, map[string]interface{}{
			"practice_id":  id(),
			"description":  str(),
			"code":         nullableStr(),
			"amount":       map[string]interface{}{"type": "number", "minimum": 0},
			"performed_at": dateTime(),
			"notes":        nullableStr(),
		}),
		"Procedure": object(nil, map[string]interface{}{
			"id":           id(),
			"patient_id":   id(),
			"practice_id":  id(),
			"description":  str(),
			"code":         nullableStr(),
			"amount":       map[string]interface{}{"type": "number"},
			"performed_at": dateTime(),
			"notes":        nullableStr(),
			"created_at":   dateTime(),
		}),
		"ProcedurePage": page("Procedure"),

		"AppointmentInput": object([]string{"patient_id", "date", "time"}, map[string]interface{}{
			"patient_id":       id(),
			"date":             map[string]interface{}{"type": "string", "format": "date"},
			"time":             map[string]interface{}{"type": "string", "pattern": "^[0-9]{2}:[0-9]{2}$"},
			"duration_minutes": map[string]interface{}{"type": "integer", "minimum": 5, "maximum": 480, "default": 30},
			"detail":           nullableStr(),
		}),
		"Appointment": object(nil, map[string]interface{}{
			"id":               id(),
			"patient_id":       id(),
			"patient_name":     str(),
			"date":             map[string]interface{}{"type": "string", "format": "date"},
			"time":             str(),
			"duration_minutes": map[string]interface{}{"type": "integer"},
			"detail":           nullableStr(),
			"status":           map[string]interface{}{"type": "string", "enum": appointmentStatuses},
			"created_at":       dateTime(),
			"updated_at":       dateTime(),
		}),
		"AppointmentPage": page("Appointment"),
		"StatusInput": object([]string{"status"}, map[string]interface{}{
			"status": map[string]interface{}{"type": "string", "enum": appointmentStatuses},
			"reason": nullableStr(),
		}),
		"StatusChange": object(nil, map[string]interface{}{
			"id":             id(),
			"appointment_id": id(),
			"from":           nullableStr(),
			"to":             str(),
			"reason":         nullableStr(),
			"changed_at":     dateTime(),
		}),
		"StatusChangeList": arrayOf("StatusChange"),
		"SweepResult":      object(nil, map[string]interface{}{"updated": map[string]interface{}{"type": "integer"}}),

		"OdontogramFace": face,
		"OdontogramVersion": object(nil, map[string]interface{}{
			"id":                     id(),
			"patient_id":             id(),
			"version_seq":            map[string]interface{}{"type": "integer"},
			"is_current":             map[string]interface{}{"type": "boolean"},
			"general_note":           nullableStr(),
			"last_procedure_seen_at": dateTime(),
			"created_at":             dateTime(),
			"updated_at":             dateTime(),
			"faces":                  arrayOf("OdontogramFace"),
		}),
		"OdontogramView": object(nil, map[string]interface{}{
			"odontogram":          ref("OdontogramVersion"),
			"versions":            arrayOf("OdontogramVersion"),
			"stale":               map[string]interface{}{"type": "boolean"},
			"latest_procedure_at": dateTime(),
		}),
		"OdontogramWrite": object(nil, map[string]interface{}{
			"odontogram": ref("OdontogramVersion"),
			"versions":   arrayOf("OdontogramVersion"),
		}),
		"OdontogramVersionInput": object(nil, map[string]interface{}{
			"changes": map[string]interface{}{
				"type": "array",
				"items": object(nil, map[string]interface{}{
					"tooth":     str(),
					"face":      str(),
					"mark_code": nullableStr(),
					"mark_text": nullableStr(),
					"comment":   nullableStr(),
					"delete":    map[string]interface{}{"type": "boolean"},
					"borrar":    map[string]interface{}{"type": "boolean"},
				}),
			},
			"general_note":    nullableStr(),
			"base_version_id": id(),
		}),
	}
}
