package config

// Catalog keys shared between packages.
const (
	KeySheetRecords        = "SHEET_NAME_RECORDS"
	KeySheetUsers          = "SHEET_NAME_USERS"
	KeyCacheInventory      = "CACHE_KEY_INVENTORY"
	KeyCacheInventoryTTL   = "CACHE_EXPIRATION_INVENTORY"
	KeyCacheUsers          = "CACHE_KEY_USERS"
	KeyCacheUsersTTL       = "CACHE_EXPIRATION_USERS"
	KeyRecordsFetchLimit   = "RECORDS_FETCH_LIMIT"
	KeyCategories          = "QR_CATEGORIES"
	KeyUnits               = "QR_UNITS"
	KeyDefaultImageURL     = "DEFAULT_IMAGE_URL"
	KeyDefaultUnknownUser  = "DEFAULT_UNKNOWN_USER"
	KeyDefaultDeleteReason = "DEFAULT_DELETE_REASON"
)

var defaultCatalog = map[string]string{
	KeySheetRecords:        "Records",
	KeySheetUsers:          "Users",
	KeyCacheInventory:      "inventory_map",
	KeyCacheInventoryTTL:   "300",
	KeyCacheUsers:          "users_map",
	KeyCacheUsersTTL:       "3600",
	KeyRecordsFetchLimit:   "5",
	KeyCategories:          "T01:Tools,E01:Electrical,C01:Consumables,S01:Safety",
	KeyUnits:               "pcs,box,set,m,kg",
	KeyDefaultImageURL:     "https://via.placeholder.com/1024x1024.png?text=No+Image",
	KeyDefaultUnknownUser:  "Unknown user",
	KeyDefaultDeleteReason: "Data error",

	"REASON_EDIT_VOID":      "Modified by {actor}",
	"REASON_EDIT_FIELDS":    "Edited by {actor}: {changes}",
	"REASON_EDIT_UNCHANGED": "Edited by {actor}: no content changed",

	"LABEL_QUERY_BY_NAME":   "By name",
	"LABEL_QUERY_BY_SERIAL": "By serial",
	"LABEL_QUERY_ALL":       "All inventory",
	"LABEL_QUERY_MINE":      "My records",
	"LABEL_CONFIRM":         "Confirm",
	"LABEL_CANCEL":          "Cancel",
	"LABEL_SKIP":            "Skip",
	"LABEL_MANUAL_UNIT":     "Other unit",
	"LABEL_INBOUND":         "Inbound",
	"LABEL_OUTBOUND":        "Outbound",
	"LABEL_EDIT":            "Edit",
	"LABEL_DELETE":          "Delete",
	"LABEL_FINISH":          "Finish",
	"LABEL_NAME":            "Name",
	"LABEL_MODEL":           "Model",
	"LABEL_SPEC":            "Spec",
	"LABEL_UNIT":            "Unit",
	"LABEL_QUANTITY":        "Quantity",
	"LABEL_TYPE":            "Type",
	"LABEL_CATEGORY":        "Category",
	"LABEL_SERIAL":          "Serial",
	"LABEL_PHOTO_ATTACHED":  "Photo attached",
	"LABEL_STOCK":           "Stock",
	"LABEL_ACTOR":           "By",
	"LABEL_TIME":            "Time",
	"LABEL_STATUS":          "Status",
	"LABEL_CHOOSE":          "Choose",

	"MSG_HELP":           "Commands:\\n/query  search inventory\\n/add  register a new material\\n/inbound  record incoming stock\\n/outbound  record outgoing stock\\n/edit  review, edit or delete your records\\n/cancel  abandon the current step",
	"MSG_CANCEL_CONFIRM": "OK, the current operation was cancelled.",
	"MSG_SYSTEM_ERROR":   "Something went wrong while saving your request. Please try again later.",
	"INFO_WIP":           "The \"{action}\" feature is not available yet.",
	"INFO_NO_RECORDS":    "You have no records yet.",
	"HEADER_MY_RECORDS":  "Your latest {count} records:",

	"INFO_TOO_MANY_RESULTS_HEADER": "{count} items found, showing a list:",
	"TEMPLATE_ALL_INVENTORY_ITEM":  "{key} {name} {model} {spec}: {stock} {unit}",

	"PROMPT_QUERY_TYPE":      "How do you want to search?",
	"PROMPT_QUERY_BY_NAME":   "Enter part of the material name:",
	"PROMPT_QUERY_BY_SERIAL": "Enter the category and serial, e.g. T01001:",
	"MSG_QUERY_NOT_FOUND":    "No material matches \"{query}\".",

	"PROMPT_ADD_CATEGORY":     "Choose the category of the new material:",
	"PROMPT_ADD_UNIT":         "Choose the unit:",
	"PROMPT_MANUAL_UNIT":      "Type the unit:",
	"PROMPT_ADD_NAME":         "Enter the material name:",
	"PROMPT_ADD_MODEL":        "Enter the model, or \"-\" to skip:",
	"PROMPT_ADD_SPEC":         "Enter the spec, or \"-\" to skip:",
	"PROMPT_ADD_QUANTITY":     "Enter the initial quantity ({unit}):",
	"PROMPT_ADD_PHOTO":        "Send a photo of the material, or skip:",
	"PROMPT_ADD_CONFIRM":      "Please confirm the new material:\\n{summary}",
	"WARN_ADD_DUPLICATE":      "Warning: {key} already has the same name, model and spec.",
	"MSG_ADD_SUCCESS":         "Added {name} as {key}. Stock: {stock} {unit}",
	"ERROR_EMPTY_VALUE":       "The value must not be empty, please try again.",
	"ERROR_INVALID_CATEGORY":  "Unknown category, please pick one of the buttons.",
	"ERROR_EXPECTED_PHOTO":    "Please send a photo, or skip.",
	"ERROR_INVALID_QUANTITY":  "Please enter a positive whole number.",
	"MSG_OPERATION_CANCELLED": "Nothing was saved.",

	"PROMPT_STOCK_SEARCH_TYPE":    "Find the material for {direction}:",
	"PROMPT_STOCK_SEARCH":         "Enter the {mode} to search:",
	"PROMPT_STOCK_SELECT":         "Pick the material:",
	"PROMPT_STOCK_QUANTITY":       "{name} ({key}) has {stock} {unit}. Enter the {direction} quantity:",
	"PROMPT_STOCK_CONFIRM_PROMPT": "Confirm {direction} of {quantity} {unit} for {name} ({key})?",
	"MSG_STOCK_INSUFFICIENT":      "Insufficient stock for {name}: {stock} {unit} available, {quantity} requested.",
	"MSG_STOCK_SUCCESS":           "{direction} of {quantity} {unit} for {name} saved. Stock: {stock} {unit}",

	"PROMPT_EDIT_SELECT_FIELD": "Editing row {row}:\\n{summary}\\nChoose a field to change, or finish:",
	"PROMPT_EDIT_STOCK_CHOICE": "Editing row {row}:\\n{summary}\\nChoose what to change, or finish:",
	"PROMPT_EDIT_NEW_VALUE":    "Current {field}: {current}\\nEnter the new value:",
	"PROMPT_EDIT_UNIT":         "Choose the new unit:",
	"PROMPT_EDIT_TYPE":         "Choose the movement type:",
	"MSG_EDIT_SUCCESS_MODIFY":  "Row {row} was corrected. The original is kept as void.",
	"MSG_EDIT_TYPE_MISMATCH":   "Row {row} cannot be edited this way.",
	"MSG_EDIT_INSUFFICIENT":    "Stock would become negative: {stock} {unit} available after voiding the original, {quantity} requested.",
	"MSG_RECORD_NOT_FOUND":     "Row {row} was not found.",
	"MSG_RECORD_VOID":          "Row {row} is already void.",
	"PROMPT_DELETE_CONFIRM":    "Delete row {row} ({kind} {name})?",
	"MSG_DELETE_SUCCESS":       "Row {row} was voided.",

	"REPORT_HEADER":           "Inventory snapshot {date}: {count} materials, {units} units in stock.",
	"REPORT_LOW_STOCK_HEADER": "Low stock (below {threshold}):",
	"REPORT_LOW_STOCK_ITEM":   "- {key} {name}: {stock} {unit}",
	"REPORT_ALL_GOOD":         "No material is below {threshold}.",
}
