package admitsync

import "fmt"

// FieldSpec is the static registry metadata for one flat applicant field.
// SupplyNull fields must exist after normalization, null when absent.
// APIVerbatim / SQLVerbatim mark pass-through into the creation payload and
// the procedure parameter set respectively.
type FieldSpec struct {
	Kind        Kind
	SupplyNull  bool
	APIVerbatim bool
	SQLVerbatim bool
}

// Fields is the registry of declared flat fields. Read-only at run time.
var Fields = map[string]FieldSpec{
	"AdmitDate":           {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"AppDecision":         {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"AppDecisionDate":     {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"AppStatus":           {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"AppStatusDate":       {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"BirthDate":           {Kind: KindString, APIVerbatim: true},
	"Campus":              {Kind: KindString, APIVerbatim: true},
	"CollegeAttendStatus": {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Commitment":          {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Counselor":           {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"CountryOfBirth":      {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"CreateDateTime":      {Kind: KindString, APIVerbatim: true, SQLVerbatim: true},
	"DemographicsEthnicity": {
		Kind: KindString, SupplyNull: true, SQLVerbatim: true,
	},
	"College":                     {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"Department":                  {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"Disabilities":                {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Email":                       {Kind: KindString, APIVerbatim: true},
	"Ethnicity":                   {Kind: KindInt, APIVerbatim: true, SQLVerbatim: true},
	"Extracurricular":             {Kind: KindBool, SupplyNull: true, SQLVerbatim: true},
	"FirstName":                   {Kind: KindString, APIVerbatim: true},
	"FormerFirstName":             {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"FormerLastName":              {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Gender":                      {Kind: KindInt, APIVerbatim: true},
	"GovernmentId":                {Kind: KindString, SupplyNull: true, APIVerbatim: true, SQLVerbatim: true},
	"IsInterestedInCampusHousing": {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"IsInterestedInFinancialAid":  {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"LastName":                    {Kind: KindString, APIVerbatim: true},
	"LastNamePrefix":              {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"LegalName":                   {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"MaritalStatus":               {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Matriculated":                {Kind: KindBool, SupplyNull: true, SQLVerbatim: true},
	"MiddleName":                  {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Nickname":                    {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Nontraditional":              {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"PEOPLE_CODE_ID":              {Kind: KindString, SQLVerbatim: true},
	"Population":                  {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"Prefix":                      {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"PrimaryCitizenship":          {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"SecondaryCitizenship":        {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"PrimaryLanguage":             {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"ProposedDecision":            {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"RaceAfricanAmerican":         {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"RaceAmericanIndian":          {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"RaceAsian":                   {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"RaceNativeHawaiian":          {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"RaceWhite":                   {Kind: KindBool, APIVerbatim: true, SQLVerbatim: true},
	"Religion":                    {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"SMSOptIn":                    {Kind: KindInt, SQLVerbatim: true},
	"Status":                      {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Suffix":                      {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"Veteran":                     {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
	"Visa":                        {Kind: KindString, SupplyNull: true, APIVerbatim: true},
	"YearTerm":                    {Kind: KindString, APIVerbatim: true},
	"aid":                         {Kind: KindString, SQLVerbatim: true},
	"pid":                         {Kind: KindString, SQLVerbatim: true},
	"AcademicGUID":                {Kind: KindString, SupplyNull: true, SQLVerbatim: true},
}

// SubFieldSpec is registry metadata for one field of a repeated
// sub-collection element.
type SubFieldSpec struct {
	Kind       Kind
	SupplyNull bool
}

// EducationFields describes one education row.
var EducationFields = map[string]SubFieldSpec{
	"GUID":               {Kind: KindString},
	"OrgIdentifier":      {Kind: KindString},
	"Degree":             {Kind: KindString, SupplyNull: true},
	"Curriculum":         {Kind: KindString, SupplyNull: true},
	"GPA":                {Kind: KindString, SupplyNull: true},
	"GPAUnweighted":      {Kind: KindString, SupplyNull: true},
	"GPAUnweightedScale": {Kind: KindString, SupplyNull: true},
	"GPAWeighted":        {Kind: KindString, SupplyNull: true},
	"GPAWeightedScale":   {Kind: KindString, SupplyNull: true},
	"StartDate":          {Kind: KindString, SupplyNull: true},
	"EndDate":            {Kind: KindString, SupplyNull: true},
	"Honors":             {Kind: KindString, SupplyNull: true},
	"TranscriptDate":     {Kind: KindString, SupplyNull: true},
	"ClassRank":          {Kind: KindString, SupplyNull: true},
	"ClassSize":          {Kind: KindString, SupplyNull: true},
	"TransferCredits":    {Kind: KindString, SupplyNull: true},
	"FinAidAmount":       {Kind: KindString, SupplyNull: true},
	"Quartile":           {Kind: KindString, SupplyNull: true},
}

// numeric test scores carry 18 repeated groups of five score fields each,
// generated from a template instead of written out by hand.
const testScoreGroups = 18

var testScoreSuffixes = []string{"Type", "", "ConversionFactor", "Converted", "TranscriptPrint"}

// TestScoreFields describes one numeric test-score row.
var TestScoreFields = buildTestScoreFields()

func buildTestScoreFields() map[string]SubFieldSpec {
	m := map[string]SubFieldSpec{
		"TestType":       {Kind: KindString},
		"TestDate":       {Kind: KindString},
		"ScoreAlpha":     {Kind: KindString, SupplyNull: true},
		"ScoreAlphaType": {Kind: KindString, SupplyNull: true},
	}
	for i := 0; i < testScoreGroups; i++ {
		for _, suffix := range testScoreSuffixes {
			m[fmt.Sprintf("Score%d%s", i, suffix)] = SubFieldSpec{Kind: KindString, SupplyNull: true}
		}
	}
	return m
}

// SubCollections maps the registry-driven sub-collection names to their
// element models.
var SubCollections = map[string]map[string]SubFieldSpec{
	"Education":         EducationFields,
	"TestScoresNumeric": TestScoreFields,
}
